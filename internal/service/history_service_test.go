package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
)

func TestHistoryListDecorated(t *testing.T) {
	svc, repos := newTestServices(t)

	fg := seedItem(t, repos, "FG-HIS", "成品HIS", entity.ItemTypeFG, "", "")
	rm := seedItem(t, repos, "RM-HIS", "原料HIS", entity.ItemTypeRM, "", "")
	bom := seedBOM(t, svc, "历史-BOM", "A", fg.ID)
	seedLine(t, svc, bom.ID, rm.ID, 1, 0)

	records := historyFor(t, svc, bom.ID)
	if len(records) != 2 {
		t.Fatalf("records = %d, want header CREATE + line CREATE", len(records))
	}
	// 倒序：最新的行CREATE在前
	if records[0].Target != entity.TargetLine || records[1].Target != entity.TargetHeader {
		t.Errorf("order = %s,%s, want LINE then HEADER", records[0].Target, records[1].Target)
	}
	for _, rec := range records {
		if rec.BomName != "历史-BOM" || rec.Rev != "A" {
			t.Errorf("decoration = %s/%s, want 历史-BOM/A", rec.BomName, rec.Rev)
		}
		if rec.ParentItemCode != "FG-HIS" {
			t.Errorf("parent code = %s, want FG-HIS", rec.ParentItemCode)
		}
		if rec.User != "tester" || rec.Source != SourceManual {
			t.Errorf("actor = %s/%s, want tester/MANUAL", rec.User, rec.Source)
		}
	}
}

// 头删除后装饰字段靠COALESCE兜底，历史仍可读
func TestHistorySurvivesHeaderDelete(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-ORPH", "成品", entity.ItemTypeFG, "", "")
	bom := seedBOM(t, svc, "孤儿-BOM", "A", fg.ID)
	if err := svc.BOM.DeleteHeader(ctx, bom.ID, "tester"); err != nil {
		t.Fatalf("DeleteHeader: %v", err)
	}

	records := historyFor(t, svc, bom.ID)
	if len(records) != 2 {
		t.Fatalf("records = %d, want CREATE + DELETE", len(records))
	}
	if records[0].OperationType != entity.OpDelete {
		t.Errorf("latest op = %s, want DELETE", records[0].OperationType)
	}
}

func TestDescribeFormat(t *testing.T) {
	rec := repository.DecoratedRecord{
		BOMOperationHistory: entity.BOMOperationHistory{
			BomID:         7,
			OperationType: entity.OpUpdate,
			Target:        entity.TargetHeader,
			User:          "张三",
			Source:        SourceManual,
			Remark:        "调整备注",
			CreatedDate:   time.Date(2025, 5, 1, 10, 30, 0, 0, time.Local),
		},
		BomName: "测试BOM",
	}
	desc := Describe(rec)
	for _, want := range []string{"2025-05-01 10:30:00", "张三", "MANUAL", "测试BOM", "BOM头", "修改", "调整备注"} {
		if !strings.Contains(desc, want) {
			t.Errorf("Describe = %q, missing %q", desc, want)
		}
	}
}

func TestHistoryExportWorkbook(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-EXP", "成品EXP", entity.ItemTypeFG, "", "")
	bom := seedBOM(t, svc, "导出-BOM", "A", fg.ID)

	f, err := svc.History.Export(ctx, bom.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("操作历史")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + one record", len(rows))
	}
	wantHeader := []string{"时间", "操作类型", "BOM名称", "对象", "操作人", "备注", "来源"}
	for i, h := range wantHeader {
		if rows[0][i] != h {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], h)
		}
	}
	if rows[1][1] != "新建" || rows[1][2] != "导出-BOM" || rows[1][6] != SourceManual {
		t.Errorf("record row = %v", rows[1])
	}
}
