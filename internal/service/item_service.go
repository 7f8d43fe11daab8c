package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
)

// 物料父子链深度上限
const maxItemDepth = 10

// ItemService 物料登记服务
type ItemService struct {
	itemRepo    *repository.ItemRepository
	bomRepo     *repository.BOMRepository
	statusCache *StatusCache
}

func NewItemService(itemRepo *repository.ItemRepository, bomRepo *repository.BOMRepository, statusCache *StatusCache) *ItemService {
	return &ItemService{itemRepo: itemRepo, bomRepo: bomRepo, statusCache: statusCache}
}

func (s *ItemService) GetAll(ctx context.Context, activeOnly bool) ([]entity.Item, error) {
	return s.itemRepo.GetAll(ctx, activeOnly)
}

func (s *ItemService) GetByID(ctx context.Context, id int64) (*entity.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: 物料 %d", ErrNotFound, id)
		}
		return nil, err
	}
	return item, nil
}

func (s *ItemService) Search(ctx context.Context, text string) ([]entity.Item, error) {
	return s.itemRepo.Search(ctx, text)
}

func (s *ItemService) ByType(ctx context.Context, kind string) ([]entity.Item, error) {
	return s.itemRepo.ByType(ctx, kind, true)
}

// Create 新建物料。编码重复返回 ErrDuplicateKey，
// 父物料指向自身或后代返回 ErrCycleDetected。
func (s *ItemService) Create(ctx context.Context, item *entity.Item) error {
	if item.ItemCode == "" {
		return fmt.Errorf("%w: 物料编码不能为空", ErrValidationFailed)
	}
	if item.CnName == "" {
		return fmt.Errorf("%w: 物料名称不能为空", ErrValidationFailed)
	}
	if !validItemType(item.ItemType) {
		return fmt.Errorf("%w: 物料类型 %q 无效", ErrValidationFailed, item.ItemType)
	}
	if item.SafetyStock < 0 {
		return fmt.Errorf("%w: 安全库存不能为负", ErrValidationFailed)
	}

	if _, err := s.itemRepo.GetByCode(ctx, item.ItemCode); err == nil {
		return fmt.Errorf("%w: 物料编码 %s 已存在", ErrDuplicateKey, item.ItemCode)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if item.ParentItemID != nil {
		if _, err := s.itemRepo.GetByID(ctx, *item.ParentItemID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: 父物料 %d", ErrNotFound, *item.ParentItemID)
			}
			return err
		}
	}

	return s.itemRepo.Create(ctx, item)
}

// Update 更新物料。校验同Create；父链成环（自身或后代作父）拒绝。
func (s *ItemService) Update(ctx context.Context, item *entity.Item) error {
	existing, err := s.itemRepo.GetByID(ctx, item.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 物料 %d", ErrNotFound, item.ID)
		}
		return err
	}

	if item.ItemCode == "" {
		return fmt.Errorf("%w: 物料编码不能为空", ErrValidationFailed)
	}
	if !validItemType(item.ItemType) {
		return fmt.Errorf("%w: 物料类型 %q 无效", ErrValidationFailed, item.ItemType)
	}
	if item.SafetyStock < 0 {
		return fmt.Errorf("%w: 安全库存不能为负", ErrValidationFailed)
	}

	if item.ItemCode != existing.ItemCode {
		if _, err := s.itemRepo.GetByCode(ctx, item.ItemCode); err == nil {
			return fmt.Errorf("%w: 物料编码 %s 已存在", ErrDuplicateKey, item.ItemCode)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	if item.ParentItemID != nil {
		cyclic, err := s.parentWouldCycle(ctx, item.ID, *item.ParentItemID)
		if err != nil {
			return err
		}
		if cyclic {
			return fmt.Errorf("%w: 物料 %d 不能以自身或后代为父", ErrCycleDetected, item.ID)
		}
	}

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return err
	}
	// 启停状态变化会影响相关BOM的派生状态
	if item.IsActive != existing.IsActive {
		s.invalidateStatus(ctx, item.ID)
	}
	return nil
}

// SoftDelete 停用物料
func (s *ItemService) SoftDelete(ctx context.Context, id int64) error {
	if err := s.itemRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 物料 %d", ErrNotFound, id)
		}
		return err
	}
	s.invalidateStatus(ctx, id)
	return nil
}

// GetParentCandidates 可选父物料：全部类型，排除自身及其后代
func (s *ItemService) GetParentCandidates(ctx context.Context, excludeID int64) ([]entity.Item, error) {
	all, err := s.itemRepo.GetAll(ctx, true)
	if err != nil {
		return nil, err
	}
	if excludeID == 0 {
		return all, nil
	}

	excluded := map[int64]bool{excludeID: true}
	if err := s.collectDescendants(ctx, excludeID, excluded, 0); err != nil {
		return nil, err
	}

	candidates := make([]entity.Item, 0, len(all))
	for _, item := range all {
		if !excluded[item.ID] {
			candidates = append(candidates, item)
		}
	}
	return candidates, nil
}

// Children 直接子物料
func (s *ItemService) Children(ctx context.Context, id int64) ([]entity.Item, error) {
	return s.itemRepo.Children(ctx, id)
}

// Hierarchy 祖先链，自下而上，最多10层
func (s *ItemService) Hierarchy(ctx context.Context, id int64) ([]entity.Item, error) {
	var chain []entity.Item
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	chain = append(chain, *current)
	for depth := 0; depth < maxItemDepth && current.ParentItemID != nil; depth++ {
		parent, err := s.itemRepo.GetByID(ctx, *current.ParentItemID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				break
			}
			return nil, err
		}
		chain = append(chain, *parent)
		current = parent
	}
	return chain, nil
}

// parentWouldCycle 沿候选父节点的父链向上走，限深10层
func (s *ItemService) parentWouldCycle(ctx context.Context, itemID, parentID int64) (bool, error) {
	if itemID == parentID {
		return true, nil
	}
	current := parentID
	for depth := 0; depth < maxItemDepth; depth++ {
		item, err := s.itemRepo.GetByID(ctx, current)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if item.ParentItemID == nil {
			return false, nil
		}
		if *item.ParentItemID == itemID {
			return true, nil
		}
		current = *item.ParentItemID
	}
	// 超出限深按成环处理，父链本身已违反不变量
	return true, nil
}

func (s *ItemService) collectDescendants(ctx context.Context, id int64, out map[int64]bool, depth int) error {
	if depth >= maxItemDepth {
		return nil
	}
	children, err := s.itemRepo.Children(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if out[child.ID] {
			continue
		}
		out[child.ID] = true
		if err := s.collectDescendants(ctx, child.ID, out, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *ItemService) invalidateStatus(ctx context.Context, itemID int64) {
	if s.statusCache == nil {
		return
	}
	ids, err := s.bomRepo.HeaderIDsUsingItem(ctx, itemID)
	if err != nil {
		return
	}
	s.statusCache.InvalidateBOMs(ctx, ids)
}

func validItemType(t string) bool {
	switch t {
	case entity.ItemTypeFG, entity.ItemTypeSFG, entity.ItemTypeRM, entity.ItemTypePKG:
		return true
	}
	return false
}
