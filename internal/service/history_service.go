package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mps/internal/repository"
	"github.com/xuri/excelize/v2"
)

// HistoryService 操作历史读取与导出
type HistoryService struct {
	historyRepo *repository.HistoryRepository
}

func NewHistoryService(historyRepo *repository.HistoryRepository) *HistoryService {
	return &HistoryService{historyRepo: historyRepo}
}

// ListByBOM 指定BOM的历史，按时间倒序
func (s *HistoryService) ListByBOM(ctx context.Context, bomID int64) ([]repository.DecoratedRecord, error) {
	return s.historyRepo.ListByBOM(ctx, bomID)
}

// ListAll 全局历史
func (s *HistoryService) ListAll(ctx context.Context, limit int) ([]repository.DecoratedRecord, error) {
	return s.historyRepo.ListAll(ctx, limit)
}

var opNames = map[string]string{
	"CREATE": "新建",
	"UPDATE": "修改",
	"DELETE": "删除",
	"IMPORT": "导入",
}

var targetNames = map[string]string{
	"HEADER": "BOM头",
	"LINE":   "BOM行",
}

// Describe 历史记录的固定格式描述
func Describe(rec repository.DecoratedRecord) string {
	name := rec.BomName
	if name == "" {
		name = fmt.Sprintf("BOM#%d", rec.BomID)
	}
	desc := fmt.Sprintf("[%s] 用户 %s 通过 %s 对 %s(%s) 执行%s操作",
		rec.CreatedDate.Format("2006-01-02 15:04:05"),
		rec.User, rec.Source, name, targetNames[rec.Target], opNames[rec.OperationType])
	if rec.Remark != "" {
		desc += "，备注: " + rec.Remark
	}
	return desc
}

var historyExportHeaders = []string{"时间", "操作类型", "BOM名称", "对象", "操作人", "备注", "来源"}

// Export 历史导出为工作簿
func (s *HistoryService) Export(ctx context.Context, bomID int64) (*excelize.File, error) {
	var records []repository.DecoratedRecord
	var err error
	if bomID > 0 {
		records, err = s.historyRepo.ListByBOM(ctx, bomID)
	} else {
		records, err = s.historyRepo.ListAll(ctx, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailed, err)
	}

	f := excelize.NewFile()
	sheet := "操作历史"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	for i, h := range historyExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, rec := range records {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.CreatedDate.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), opNames[rec.OperationType])
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), rec.BomName)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), targetNames[rec.Target])
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), rec.User)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), rec.Remark)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), rec.Source)
	}

	colWidths := []float64{20, 10, 16, 10, 12, 30, 10}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
	return f, nil
}
