package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"gorm.io/gorm"
)

// ItemRepository 物料仓库
type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// GetAll 获取物料列表，activeOnly 时过滤停用物料
func (r *ItemRepository) GetAll(ctx context.Context, activeOnly bool) ([]entity.Item, error) {
	var items []entity.Item
	query := r.db.WithContext(ctx).Order("item_code ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&items).Error
	return items, err
}

func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*entity.Item, error) {
	var item entity.Item
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// GetByCode 按物料编码精确查找（含停用物料，编码全局唯一）
func (r *ItemRepository) GetByCode(ctx context.Context, code string) (*entity.Item, error) {
	var item entity.Item
	err := r.db.WithContext(ctx).Where("item_code = ?", code).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Search 编码/名称/规格/品牌子串检索
func (r *ItemRepository) Search(ctx context.Context, text string) ([]entity.Item, error) {
	var items []entity.Item
	like := "%" + text + "%"
	err := r.db.WithContext(ctx).
		Where("item_code LIKE ? OR cn_name LIKE ? OR item_spec LIKE ? OR brand LIKE ?",
			like, like, like, like).
		Order("item_code ASC").
		Find(&items).Error
	return items, err
}

// ByType 按物料类型过滤
func (r *ItemRepository) ByType(ctx context.Context, kind string, activeOnly bool) ([]entity.Item, error) {
	var items []entity.Item
	query := r.db.WithContext(ctx).Where("item_type = ?", kind)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("item_code ASC").Find(&items).Error
	return items, err
}

// ByTypes 按多个物料类型过滤，导入匹配时取候选集用
func (r *ItemRepository) ByTypes(ctx context.Context, kinds []string, activeOnly bool) ([]entity.Item, error) {
	var items []entity.Item
	query := r.db.WithContext(ctx).Where("item_type IN ?", kinds)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("item_code ASC").Find(&items).Error
	return items, err
}

func (r *ItemRepository) Create(ctx context.Context, item *entity.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *ItemRepository) Update(ctx context.Context, item *entity.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// SoftDelete 停用物料。硬标识保留，历史和BOM行仍可解析。
func (r *ItemRepository) SoftDelete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Item{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Children 直接子物料（按物料父子链，非BOM）
func (r *ItemRepository) Children(ctx context.Context, id int64) ([]entity.Item, error) {
	var items []entity.Item
	err := r.db.WithContext(ctx).
		Where("parent_item_id = ?", id).
		Order("item_code ASC").
		Find(&items).Error
	return items, err
}
