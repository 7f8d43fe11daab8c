package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
)

// Expand 递归展开父件BOM为带损耗的需求序列。
// 先序深度优先，行项按LineID升序，Level从1起逐层加1，
// 损耗沿路径乘法叠加：actual = QtyPer·qty·(1+ScrapFactor)。
// rev为空时取字典序最大的有效版本。无BOM的物料视为叶子。
// 类型过滤（RM/PKG等）由调用方在结果上自行处理。
func (s *BOMService) Expand(ctx context.Context, parentItemID int64, qty float64, rev string) ([]entity.ExpandedLine, error) {
	bom, err := s.repos.BOM.GetActiveByParentItem(ctx, parentItemID, rev)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: 父件 %d 没有有效BOM", ErrNotFound, parentItemID)
		}
		return nil, err
	}
	return s.expand(ctx, bom, parentItemID, qty)
}

func (s *BOMService) expand(ctx context.Context, bom *entity.BOMHeader, parentItemID int64, qty float64) ([]entity.ExpandedLine, error) {
	var result []entity.ExpandedLine
	for _, line := range bom.Lines {
		actualQty := line.QtyPer * qty * (1 + line.ScrapFactor)

		expanded := entity.ExpandedLine{
			ItemID:       line.ChildItemID,
			QtyPer:       line.QtyPer,
			ActualQty:    actualQty,
			ScrapFactor:  line.ScrapFactor,
			Level:        1,
			ParentItemID: parentItemID,
		}
		if line.ChildItem != nil {
			expanded.ItemCode = line.ChildItem.ItemCode
			expanded.ItemName = line.ChildItem.CnName
			expanded.ItemSpec = line.ChildItem.ItemSpec
			expanded.ItemType = line.ChildItem.ItemType
			expanded.Brand = line.ChildItem.Brand
			expanded.ProjectName = line.ChildItem.ProjectName
		}
		result = append(result, expanded)

		childBOM, err := s.repos.BOM.GetActiveByParentItem(ctx, line.ChildItemID, "")
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue // 叶子
			}
			return nil, err
		}
		nested, err := s.expand(ctx, childBOM, line.ChildItemID, actualQty)
		if err != nil {
			return nil, err
		}
		for i := range nested {
			nested[i].Level++
		}
		result = append(result, nested...)
	}
	return result, nil
}
