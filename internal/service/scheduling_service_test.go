package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func TestOrderValidation(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)
	cases := []struct {
		name  string
		order entity.SchedulingOrder
	}{
		{"empty name", entity.SchedulingOrder{StartDate: start, EndDate: start}},
		{"no dates", entity.SchedulingOrder{OrderName: "订单"}},
		{"end before start", entity.SchedulingOrder{OrderName: "订单", StartDate: start, EndDate: start.AddDate(0, 0, -1)}},
		{"bad status", entity.SchedulingOrder{OrderName: "订单", StartDate: start, EndDate: start, Status: "Paused"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := tc.order
			if err := svc.Scheduling.CreateOrder(ctx, &order); !errors.Is(err, ErrValidationFailed) {
				t.Errorf("CreateOrder err = %v, want ErrValidationFailed", err)
			}
		})
	}
}

func TestAddProductSnapshotsItem(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-SNAP", "快照成品", entity.ItemTypeFG, "品牌丙", "SPEC-1")
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)
	order := seedOrder(t, svc, "快照订单", day, day)

	if err := svc.Scheduling.AddProduct(ctx, order.ID, fg.ID); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	// 重复加入幂等
	if err := svc.Scheduling.AddProduct(ctx, order.ID, fg.ID); err != nil {
		t.Fatalf("AddProduct twice: %v", err)
	}

	products, err := repos.Scheduling.ListProducts(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}
	p := products[0]
	if p.ItemCode != "FG-SNAP" || p.CnName != "快照成品" || p.Brand != "品牌丙" || p.ItemSpec != "SPEC-1" {
		t.Errorf("snapshot = %+v, want item display fields copied", p)
	}
}

// 负数量与出窗日期逐格收集，不阻断整批
func TestBatchUpsertLinesPartialFailure(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-B", "成品B", entity.ItemTypeFG, "", "")
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 2)
	order := seedOrder(t, svc, "批量订单", start, end)

	result, err := svc.Scheduling.BatchUpsertLines(ctx, order.ID, []LineUpsert{
		{ItemID: fg.ID, ProductionDate: start, PlannedQty: 10},
		{ItemID: fg.ID, ProductionDate: start.AddDate(0, 0, 1), PlannedQty: -5},
		{ItemID: fg.ID, ProductionDate: end.AddDate(0, 0, 7), PlannedQty: 3},
	})
	if err != nil {
		t.Fatalf("BatchUpsertLines: %v", err)
	}
	if result.SuccessCount != 1 {
		t.Errorf("success = %d, want 1", result.SuccessCount)
	}
	if len(result.Errors) != 2 {
		t.Errorf("errors = %v, want negative qty and out-of-window entries", result.Errors)
	}

	// 同格重写覆盖而非追加
	if _, err := svc.Scheduling.BatchUpsertLines(ctx, order.ID, []LineUpsert{
		{ItemID: fg.ID, ProductionDate: start, PlannedQty: 6},
	}); err != nil {
		t.Fatalf("BatchUpsertLines overwrite: %v", err)
	}
	lines, err := repos.Scheduling.ListLines(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListLines: %v", err)
	}
	if len(lines) != 1 || lines[0].PlannedQty != 6 {
		t.Fatalf("lines = %+v, want single cell qty 6", lines)
	}
}

func TestKanbanView(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-K", "成品K", entity.ItemTypeFG, "", "")
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 2)
	order := seedOrder(t, svc, "看板订单", start, end)
	if err := svc.Scheduling.AddProduct(ctx, order.ID, fg.ID); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	schedule(t, svc, order.ID, fg.ID, start.AddDate(0, 0, 1), 8)

	view, err := svc.Scheduling.Kanban(ctx, order.ID)
	if err != nil {
		t.Fatalf("Kanban: %v", err)
	}
	if len(view.Dates) != 3 {
		t.Errorf("dates = %v, want 3 days", view.Dates)
	}
	if len(view.Products) != 1 {
		t.Errorf("products = %d, want 1", len(view.Products))
	}
	if got := view.Cells[fg.ID]["2025-01-07"]; got != 8 {
		t.Errorf("cell = %v, want 8", got)
	}
}

func TestDeleteOrderCascades(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-DC", "成品DC", entity.ItemTypeFG, "", "")
	rm := seedItem(t, repos, "RM-DC", "原料DC", entity.ItemTypeRM, "", "")
	bom := seedBOM(t, svc, "成品DC-BOM", "A", fg.ID)
	seedLine(t, svc, bom.ID, rm.ID, 1, 0)

	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)
	order := seedOrder(t, svc, "级联订单", day, day)
	if err := svc.Scheduling.AddProduct(ctx, order.ID, fg.ID); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	schedule(t, svc, order.ID, fg.ID, day, 4)
	if _, err := svc.Planner.Calculate(ctx, PlanRequest{
		OrderID: order.ID, Start: day, End: day, Persist: true,
	}); err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if err := svc.Scheduling.DeleteOrder(ctx, order.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}

	if _, err := svc.Scheduling.GetOrder(ctx, order.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOrder err = %v, want ErrNotFound", err)
	}
	lines, _ := repos.Scheduling.ListLines(ctx, order.ID)
	products, _ := repos.Scheduling.ListProducts(ctx, order.ID)
	mrp, _ := repos.Scheduling.ListMRPByOrder(ctx, order.ID)
	if len(lines)+len(products)+len(mrp) != 0 {
		t.Errorf("leftovers after delete: lines=%d products=%d mrp=%d", len(lines), len(products), len(mrp))
	}
}

func TestParseBucketLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-01-06", "2025-01-06", true},
		{"2025/1/6", "2025-01-06", true},
		{"2025-W02", "2025-01-06", true},
		{"2025W02", "2025-01-06", true},
		{"2025w02", "2025-01-06", true},
		{"不是日期", "", false},
		{"2025-W99", "", false},
	}
	for _, tc := range cases {
		got, ok := parseBucketLabel(tc.in)
		if ok != tc.ok {
			t.Errorf("parseBucketLabel(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && dayKey(got) != tc.want {
			t.Errorf("parseBucketLabel(%q) = %s, want %s", tc.in, dayKey(got), tc.want)
		}
	}
}

func TestIngestScheduleFromExcel(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-ING", "导入成品", entity.ItemTypeFG, "", "")
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 1)
	order := seedOrder(t, svc, "导入订单", start, end)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "物料编码")
	f.SetCellValue(sheet, "B1", "2025-01-06")
	f.SetCellValue(sheet, "C1", "2025-01-07")
	f.SetCellValue(sheet, "A2", "FG-ING")
	f.SetCellValue(sheet, "B2", 10)
	f.SetCellValue(sheet, "C2", "abc") // 非数字按0处理，记警告

	result, err := svc.Scheduling.IngestSchedule(ctx, order.ID, f)
	if err != nil {
		t.Fatalf("IngestSchedule: %v", err)
	}
	if result.SuccessCount != 1 {
		t.Errorf("success = %d, want 1", result.SuccessCount)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "按0处理") {
		t.Errorf("warnings = %v, want non-numeric warning", result.Warnings)
	}

	lines, err := repos.Scheduling.ListLines(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListLines: %v", err)
	}
	if len(lines) != 1 || lines[0].ItemID != fg.ID || lines[0].PlannedQty != 10 {
		t.Fatalf("lines = %+v, want single FG-ING qty 10", lines)
	}
	// 导入自动登记订单产品
	products, err := repos.Scheduling.ListProducts(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("products = %d, want 1", len(products))
	}
}

// 旧系统CSV是GBK编码，导入前转码
func TestIngestScheduleFromGBKCSV(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	seedItem(t, repos, "FG-GBK", "国标成品", entity.ItemTypeFG, "", "")
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)
	order := seedOrder(t, svc, "转码订单", start, start)

	csv := "物料编码,2025-01-06\nFG-GBK,12\n"
	gbk, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte(csv))
	if err != nil {
		t.Fatalf("encode gbk: %v", err)
	}

	result, err := svc.Scheduling.IngestScheduleCSV(ctx, order.ID, bytes.NewReader(gbk))
	if err != nil {
		t.Fatalf("IngestScheduleCSV: %v", err)
	}
	if result.SuccessCount != 1 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v, want one cell upserted", result)
	}

	lines, err := repos.Scheduling.ListLines(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListLines: %v", err)
	}
	if len(lines) != 1 || lines[0].PlannedQty != 12 {
		t.Fatalf("lines = %+v, want single qty 12", lines)
	}
}

func TestIngestUnknownItemCollected(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)
	order := seedOrder(t, svc, "缺料订单", start, start)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "物料编码")
	f.SetCellValue(sheet, "B1", "2025-01-06")
	f.SetCellValue(sheet, "A2", "FG-MISSING")
	f.SetCellValue(sheet, "B2", 5)

	result, err := svc.Scheduling.IngestSchedule(ctx, order.ID, f)
	if err != nil {
		t.Fatalf("IngestSchedule: %v", err)
	}
	if result.SuccessCount != 0 || len(result.Errors) != 1 {
		t.Fatalf("result = %+v, want one unknown-code error", result)
	}
}
