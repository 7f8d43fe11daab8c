package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"gorm.io/gorm"
)

// HistoryRepository BOM操作历史仓库。只写不改。
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Create(ctx context.Context, rec *entity.BOMOperationHistory) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// DecoratedRecord 带BOM名称/父件信息的历史记录
type DecoratedRecord struct {
	entity.BOMOperationHistory
	BomName        string `json:"bom_name"`
	Rev            string `json:"rev"`
	ParentItemCode string `json:"parent_item_code"`
	ParentItemName string `json:"parent_item_name"`
}

// ListByBOM 按BOM过滤，新记录在前
func (r *HistoryRepository) ListByBOM(ctx context.Context, bomID int64) ([]DecoratedRecord, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("bom_operation_history.bom_id = ?", bomID))
}

// ListAll 全局历史，limit<=0 时不限制
func (r *HistoryRepository) ListAll(ctx context.Context, limit int) ([]DecoratedRecord, error) {
	query := r.db.WithContext(ctx)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.list(ctx, query)
}

// list 左联BOM头和父件装饰名称。BOM头可能已被删除，联不上时名称留空。
func (r *HistoryRepository) list(ctx context.Context, query *gorm.DB) ([]DecoratedRecord, error) {
	var records []DecoratedRecord
	err := query.
		Model(&entity.BOMOperationHistory{}).
		Select("bom_operation_history.*, " +
			"COALESCE(bom_headers.bom_name, '') AS bom_name, " +
			"COALESCE(bom_headers.rev, '') AS rev, " +
			"COALESCE(items.item_code, '') AS parent_item_code, " +
			"COALESCE(items.cn_name, '') AS parent_item_name").
		Joins("LEFT JOIN bom_headers ON bom_headers.id = bom_operation_history.bom_id").
		Joins("LEFT JOIN items ON items.id = bom_headers.parent_item_id").
		Order("bom_operation_history.id DESC").
		Find(&records).Error
	return records, err
}

// CountByBOM 指定BOM的历史条数
func (r *HistoryRepository) CountByBOM(ctx context.Context, bomID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.BOMOperationHistory{}).
		Where("bom_id = ?", bomID).
		Count(&count).Error
	return count, err
}
