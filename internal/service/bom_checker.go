package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-mps/internal/repository"
)

// BOMChecker BOM图校验器。父件→子件边按"子件自己的BOM"反复查找展开，
// 不维护显式边表。
type BOMChecker struct {
	bomRepo  *repository.BOMRepository
	itemRepo *repository.ItemRepository
}

func NewBOMChecker(bomRepo *repository.BOMRepository, itemRepo *repository.ItemRepository) *BOMChecker {
	return &BOMChecker{bomRepo: bomRepo, itemRepo: itemRepo}
}

// HasCycle 从childItemID出发做DFS。节点重入visited即为环；
// 回溯时从visited移除，这样同一叶子经不同路径到达不会误报。
func (c *BOMChecker) HasCycle(ctx context.Context, childItemID int64, visited map[int64]bool) (bool, error) {
	if visited[childItemID] {
		return true, nil
	}
	visited[childItemID] = true

	bom, err := c.bomRepo.GetActiveByParentItem(ctx, childItemID, "")
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 叶子物料，无下级BOM
			delete(visited, childItemID)
			return false, nil
		}
		return false, err
	}

	for _, line := range bom.Lines {
		cyclic, err := c.HasCycle(ctx, line.ChildItemID, visited)
		if err != nil {
			return false, err
		}
		if cyclic {
			return true, nil
		}
	}

	delete(visited, childItemID)
	return false, nil
}

// WouldCreateCycle 判断向 parentItemID 的BOM中加入子件 childItemID
// 是否会闭合成环
func (c *BOMChecker) WouldCreateCycle(ctx context.Context, parentItemID, childItemID int64) (bool, error) {
	if parentItemID == childItemID {
		return true, nil
	}
	visited := map[int64]bool{parentItemID: true}
	return c.HasCycle(ctx, childItemID, visited)
}

// ValidateBOMStructure 返回BOM结构问题的可读错误列表：
// 循环引用、QtyPer≤0、ScrapFactor<0。
func (c *BOMChecker) ValidateBOMStructure(ctx context.Context, bomID int64) ([]string, error) {
	bom, err := c.bomRepo.GetHeaderByID(ctx, bomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: BOM %d", ErrNotFound, bomID)
		}
		return nil, err
	}

	var problems []string
	for _, line := range bom.Lines {
		code := fmt.Sprintf("子件 %d", line.ChildItemID)
		if line.ChildItem != nil {
			code = line.ChildItem.ItemCode
		}

		if line.QtyPer <= 0 {
			problems = append(problems, fmt.Sprintf("%s 的单位用量必须大于0", code))
		}
		if line.ScrapFactor < 0 {
			problems = append(problems, fmt.Sprintf("%s 的损耗率不能为负", code))
		}

		visited := map[int64]bool{bom.ParentItemID: true}
		cyclic, err := c.HasCycle(ctx, line.ChildItemID, visited)
		if err != nil {
			return nil, err
		}
		if cyclic {
			problems = append(problems, fmt.Sprintf("%s 存在循环引用", code))
		}
	}
	return problems, nil
}
