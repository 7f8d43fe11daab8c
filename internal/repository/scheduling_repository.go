package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchedulingRepository 排产仓库
type SchedulingRepository struct {
	db *gorm.DB
}

func NewSchedulingRepository(db *gorm.DB) *SchedulingRepository {
	return &SchedulingRepository{db: db}
}

func (r *SchedulingRepository) GetOrder(ctx context.Context, id int64) (*entity.SchedulingOrder, error) {
	var order entity.SchedulingOrder
	err := r.db.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_code ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *SchedulingRepository) ListOrders(ctx context.Context) ([]entity.SchedulingOrder, error) {
	var orders []entity.SchedulingOrder
	err := r.db.WithContext(ctx).Order("id DESC").Find(&orders).Error
	return orders, err
}

func (r *SchedulingRepository) CreateOrder(ctx context.Context, order *entity.SchedulingOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *SchedulingRepository) UpdateOrder(ctx context.Context, order *entity.SchedulingOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *SchedulingRepository) DeleteOrder(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.SchedulingOrder{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddProduct 订单加产品，(order, item) 已存在时忽略
func (r *SchedulingRepository) AddProduct(ctx context.Context, product *entity.SchedulingOrderProduct) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).
		Create(product).Error
}

// RemoveProduct 移除产品，同时清掉该产品的排产明细
func (r *SchedulingRepository) RemoveProduct(ctx context.Context, orderID, itemID int64) error {
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND item_id = ?", orderID, itemID).
		Delete(&entity.SchedulingOrderLine{}).Error; err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Where("order_id = ? AND item_id = ?", orderID, itemID).
		Delete(&entity.SchedulingOrderProduct{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SchedulingRepository) ListProducts(ctx context.Context, orderID int64) ([]entity.SchedulingOrderProduct, error) {
	var products []entity.SchedulingOrderProduct
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("item_code ASC").
		Find(&products).Error
	return products, err
}

// UpsertLine 按 (order, item, date) 插入或更新计划量
func (r *SchedulingRepository) UpsertLine(ctx context.Context, line *entity.SchedulingOrderLine) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "order_id"}, {Name: "item_id"}, {Name: "production_date"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"planned_qty", "updated_date"}),
		}).
		Create(line).Error
}

// ListLines 订单排产明细，日期升序
func (r *SchedulingRepository) ListLines(ctx context.Context, orderID int64) ([]entity.SchedulingOrderLine, error) {
	var lines []entity.SchedulingOrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("item_id ASC, production_date ASC").
		Find(&lines).Error
	return lines, err
}

// ListLinesInRange 时间窗内的排产明细
func (r *SchedulingRepository) ListLinesInRange(ctx context.Context, orderID int64, start, end time.Time) ([]entity.SchedulingOrderLine, error) {
	var lines []entity.SchedulingOrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND production_date >= ? AND production_date <= ?", orderID, start, end).
		Order("item_id ASC, production_date ASC").
		Find(&lines).Error
	return lines, err
}

func (r *SchedulingRepository) DeleteLinesByOrder(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&entity.SchedulingOrderLine{}).Error
}

func (r *SchedulingRepository) DeleteProductsByOrder(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&entity.SchedulingOrderProduct{}).Error
}

// ReplaceMRPResults 重写订单的MRP结果缓存
func (r *SchedulingRepository) ReplaceMRPResults(ctx context.Context, orderID int64, rows []entity.SchedulingOrderMRP) error {
	if err := r.DeleteMRPByOrder(ctx, orderID); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 200).Error
}

func (r *SchedulingRepository) DeleteMRPByOrder(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&entity.SchedulingOrderMRP{}).Error
}

func (r *SchedulingRepository) ListMRPByOrder(ctx context.Context, orderID int64) ([]entity.SchedulingOrderMRP, error) {
	var rows []entity.SchedulingOrderMRP
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("item_id ASC, production_date ASC").
		Find(&rows).Error
	return rows, err
}
