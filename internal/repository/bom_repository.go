package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"gorm.io/gorm"
)

// BOMRepository BOM仓库
type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// GetHeaderByID 获取BOM头，行项按LineID升序预加载
func (r *BOMRepository) GetHeaderByID(ctx context.Context, id int64) (*entity.BOMHeader, error) {
	var bom entity.BOMHeader
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Lines.ChildItem").
		Where("id = ?", id).
		First(&bom).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.attachParentItems(ctx, []*entity.BOMHeader{&bom}); err != nil {
		return nil, err
	}
	return &bom, nil
}

// attachParentItems 装配BOM头的父件物料（含已停用物料，状态派生要看到它们）
func (r *BOMRepository) attachParentItems(ctx context.Context, boms []*entity.BOMHeader) error {
	if len(boms) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(boms))
	for _, bom := range boms {
		ids = append(ids, bom.ParentItemID)
	}
	var items []entity.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return err
	}
	byID := make(map[int64]*entity.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	for _, bom := range boms {
		bom.ParentItem = byID[bom.ParentItemID]
	}
	return nil
}

// GetHeaderByNameRev 按逻辑键 (BomName, Rev) 获取BOM头
func (r *BOMRepository) GetHeaderByNameRev(ctx context.Context, name, rev string) (*entity.BOMHeader, error) {
	var bom entity.BOMHeader
	err := r.db.WithContext(ctx).
		Where("bom_name = ? AND rev = ?", name, rev).
		First(&bom).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bom, nil
}

// GetActiveByParentItem 获取父件的有效BOM。
// rev为空时取版本号字典序最大的一个（rev DESC），不做数值解释。
func (r *BOMRepository) GetActiveByParentItem(ctx context.Context, parentItemID int64, rev string) (*entity.BOMHeader, error) {
	var bom entity.BOMHeader
	query := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Lines.ChildItem").
		Where("parent_item_id = ? AND is_active = ?", parentItemID, true)

	if rev != "" {
		query = query.Where("rev = ?", rev)
	} else {
		query = query.Order("rev DESC")
	}

	err := query.First(&bom).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bom, nil
}

// ListHeaders 获取BOM头列表，search 对名称/版本/父件编码做子串过滤
func (r *BOMRepository) ListHeaders(ctx context.Context, search string) ([]entity.BOMHeader, error) {
	var boms []entity.BOMHeader
	query := r.db.WithContext(ctx)
	if search != "" {
		like := "%" + search + "%"
		query = query.
			Joins("LEFT JOIN items ON items.id = bom_headers.parent_item_id").
			Where("bom_headers.bom_name LIKE ? OR bom_headers.rev LIKE ? OR items.item_code LIKE ?",
				like, like, like)
	}
	err := query.Order("bom_headers.bom_name ASC, bom_headers.rev DESC").Find(&boms).Error
	if err != nil {
		return nil, err
	}
	refs := make([]*entity.BOMHeader, len(boms))
	for i := range boms {
		refs[i] = &boms[i]
	}
	if err := r.attachParentItems(ctx, refs); err != nil {
		return nil, err
	}
	return boms, nil
}

// ListByParentItem 父件的全部BOM（含停用）
func (r *BOMRepository) ListByParentItem(ctx context.Context, parentItemID int64) ([]entity.BOMHeader, error) {
	var boms []entity.BOMHeader
	err := r.db.WithContext(ctx).
		Where("parent_item_id = ?", parentItemID).
		Order("rev DESC").
		Find(&boms).Error
	return boms, err
}

func (r *BOMRepository) CreateHeader(ctx context.Context, bom *entity.BOMHeader) error {
	return r.db.WithContext(ctx).Create(bom).Error
}

func (r *BOMRepository) UpdateHeader(ctx context.Context, bom *entity.BOMHeader) error {
	return r.db.WithContext(ctx).Save(bom).Error
}

func (r *BOMRepository) DeleteHeader(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.BOMHeader{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLines 获取BOM行项，LineID升序保证展开顺序确定
func (r *BOMRepository) GetLines(ctx context.Context, bomID int64) ([]entity.BOMLine, error) {
	var lines []entity.BOMLine
	err := r.db.WithContext(ctx).
		Preload("ChildItem").
		Where("bom_id = ?", bomID).
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *BOMRepository) GetLine(ctx context.Context, id int64) (*entity.BOMLine, error) {
	var line entity.BOMLine
	err := r.db.WithContext(ctx).
		Preload("ChildItem").
		Where("id = ?", id).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// GetLineByChild 查找BOM内某子件的行项
func (r *BOMRepository) GetLineByChild(ctx context.Context, bomID, childItemID int64) (*entity.BOMLine, error) {
	var line entity.BOMLine
	err := r.db.WithContext(ctx).
		Where("bom_id = ? AND child_item_id = ?", bomID, childItemID).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

func (r *BOMRepository) CreateLine(ctx context.Context, line *entity.BOMLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *BOMRepository) UpdateLine(ctx context.Context, line *entity.BOMLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

func (r *BOMRepository) DeleteLine(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.BOMLine{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchByComponent "用到物料X的BOM"：任一行项子件的编码/名称/规格命中过滤串
func (r *BOMRepository) SearchByComponent(ctx context.Context, filter string) ([]entity.BOMHeader, error) {
	like := "%" + filter + "%"
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&entity.BOMLine{}).
		Distinct("bom_lines.bom_id").
		Joins("JOIN items ON items.id = bom_lines.child_item_id").
		Where("items.item_code LIKE ? OR items.cn_name LIKE ? OR items.item_spec LIKE ?",
			like, like, like).
		Pluck("bom_lines.bom_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var boms []entity.BOMHeader
	err = r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("bom_name ASC, rev DESC").
		Find(&boms).Error
	if err != nil {
		return nil, err
	}
	refs := make([]*entity.BOMHeader, len(boms))
	for i := range boms {
		refs[i] = &boms[i]
	}
	if err := r.attachParentItems(ctx, refs); err != nil {
		return nil, err
	}
	return boms, nil
}

// HeaderIDsUsingItem 物料作为父件或子件出现的BOM头ID，状态缓存失效用
func (r *BOMRepository) HeaderIDsUsingItem(ctx context.Context, itemID int64) ([]int64, error) {
	var asParent []int64
	if err := r.db.WithContext(ctx).
		Model(&entity.BOMHeader{}).
		Where("parent_item_id = ?", itemID).
		Pluck("id", &asParent).Error; err != nil {
		return nil, err
	}
	var asChild []int64
	if err := r.db.WithContext(ctx).
		Model(&entity.BOMLine{}).
		Distinct("bom_id").
		Where("child_item_id = ?", itemID).
		Pluck("bom_id", &asChild).Error; err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(asParent)+len(asChild))
	var ids []int64
	for _, id := range append(asParent, asChild...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
