package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"gorm.io/gorm"
)

// InventoryRepository 库存仓库
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// GetTotalStock 物料在手量合计（跨仓位/批次）
func (r *InventoryRepository) GetTotalStock(ctx context.Context, itemID int64) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&entity.InventoryBalance{}).
		Select("COALESCE(SUM(qty_on_hand), 0)").
		Where("item_id = ?", itemID).
		Scan(&total).Error
	return total, err
}

// GetTotalStockBulk 批量取在手量合计，计划展开时避免逐料查询
func (r *InventoryRepository) GetTotalStockBulk(ctx context.Context, itemIDs []int64) (map[int64]float64, error) {
	totals := make(map[int64]float64, len(itemIDs))
	if len(itemIDs) == 0 {
		return totals, nil
	}
	type row struct {
		ItemID int64
		Total  float64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&entity.InventoryBalance{}).
		Select("item_id, COALESCE(SUM(qty_on_hand), 0) AS total").
		Where("item_id IN ?", itemIDs).
		Group("item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		totals[r.ItemID] = r.Total
	}
	return totals, nil
}

// ListByItem 物料的结存明细
func (r *InventoryRepository) ListByItem(ctx context.Context, itemID int64) ([]entity.InventoryBalance, error) {
	var balances []entity.InventoryBalance
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("warehouse ASC, location ASC, batch_no ASC").
		Find(&balances).Error
	return balances, err
}

func (r *InventoryRepository) Create(ctx context.Context, bal *entity.InventoryBalance) error {
	return r.db.WithContext(ctx).Create(bal).Error
}

func (r *InventoryRepository) Update(ctx context.Context, bal *entity.InventoryBalance) error {
	return r.db.WithContext(ctx).Save(bal).Error
}

func (r *InventoryRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.InventoryBalance{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWarehouses 仓库列表
func (r *InventoryRepository) ListWarehouses(ctx context.Context) ([]entity.Warehouse, error) {
	var warehouses []entity.Warehouse
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&warehouses).Error
	return warehouses, err
}

func (r *InventoryRepository) GetByID(ctx context.Context, id int64) (*entity.InventoryBalance, error) {
	var bal entity.InventoryBalance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&bal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bal, nil
}
