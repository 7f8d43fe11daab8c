package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
	"github.com/xuri/excelize/v2"
)

// ExportService BOM导出。矩阵页与导入布局一致，可往返；
// 另外每个BOM一张 (编码/名称/规格/用量) 明细页。
type ExportService struct {
	repos *repository.Repositories
}

func NewExportService(repos *repository.Repositories) *ExportService {
	return &ExportService{repos: repos}
}

// ExportMatrix 导出全部有效BOM为矩阵工作簿
func (s *ExportService) ExportMatrix(ctx context.Context) (*excelize.File, error) {
	headers, err := s.repos.BOM.ListHeaders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailed, err)
	}

	f := excelize.NewFile()
	sheet := "BOM矩阵"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})

	// 组件行标识
	labels := []string{"组件编码", "组件名称", "组件规格"}
	for i, label := range labels {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s4", col)
		f.SetCellValue(sheet, cell, label)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	// 组件行序：按首次出现顺序稳定累积
	compRow := make(map[int64]int)
	nextRow := matrixComponentStartRow + 1 // excel行号从1起

	col := matrixProductStartCol + 1
	for i := range headers {
		header := &headers[i]
		if !header.IsActive {
			continue
		}
		full, err := s.repos.BOM.GetHeaderByID(ctx, header.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOFailed, err)
		}

		colName, _ := excelize.ColumnNumberToName(col)
		if full.ParentItem != nil {
			f.SetCellValue(sheet, colName+"1", full.ParentItem.ItemCode)
			f.SetCellValue(sheet, colName+"2", full.ParentItem.CnName)
			f.SetCellValue(sheet, colName+"3", full.ParentItem.ItemSpec)
			f.SetCellValue(sheet, colName+"4", full.ParentItem.Brand)
		}
		f.SetCellStyle(sheet, colName+"1", colName+"4", boldStyle)

		for _, line := range full.Lines {
			if line.ChildItem == nil {
				continue
			}
			row, ok := compRow[line.ChildItemID]
			if !ok {
				row = nextRow
				nextRow++
				compRow[line.ChildItemID] = row
				f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line.ChildItem.ItemCode)
				f.SetCellValue(sheet, fmt.Sprintf("B%d", row), line.ChildItem.CnName)
				f.SetCellValue(sheet, fmt.Sprintf("C%d", row), line.ChildItem.ItemSpec)
			}
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", colName, row), line.QtyPer)
		}

		if err := s.addDetailSheet(f, full, boldStyle); err != nil {
			return nil, err
		}
		col++
	}

	f.SetColWidth(sheet, "A", "C", 18)
	return f, nil
}

// addDetailSheet 单BOM明细页
func (s *ExportService) addDetailSheet(f *excelize.File, bom *entity.BOMHeader, boldStyle int) error {
	name := fmt.Sprintf("%s-%s", bom.BomName, bom.Rev)
	if len([]rune(name)) > 28 {
		name = string([]rune(name)[:28]) // sheet名31字符上限
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("%w: 创建明细页失败: %v", ErrParseFailed, err)
	}

	detailHeaders := []string{"物料编码", "物料名称", "规格", "单位用量"}
	for i, h := range detailHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(name, cell, h)
		f.SetCellStyle(name, cell, cell, boldStyle)
	}
	for idx, line := range bom.Lines {
		row := idx + 2
		if line.ChildItem != nil {
			f.SetCellValue(name, fmt.Sprintf("A%d", row), line.ChildItem.ItemCode)
			f.SetCellValue(name, fmt.Sprintf("B%d", row), line.ChildItem.CnName)
			f.SetCellValue(name, fmt.Sprintf("C%d", row), line.ChildItem.ItemSpec)
		}
		f.SetCellValue(name, fmt.Sprintf("D%d", row), line.QtyPer)
	}
	f.SetColWidth(name, "A", "C", 18)
	return nil
}
