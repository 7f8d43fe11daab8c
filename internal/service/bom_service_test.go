package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
)

func TestCreateHeaderValidation(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()
	fg := seedItem(t, repos, "FG-H", "成品H", entity.ItemTypeFG, "", "")

	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local)
	badExpire := time.Date(2024, 12, 31, 0, 0, 0, 0, time.Local)

	cases := []struct {
		name   string
		header entity.BOMHeader
	}{
		{"empty name", entity.BOMHeader{Rev: "A", ParentItemID: fg.ID, EffectiveDate: effective}},
		{"empty rev", entity.BOMHeader{BomName: "X", ParentItemID: fg.ID, EffectiveDate: effective}},
		{"malformed rev", entity.BOMHeader{BomName: "X", Rev: "A/1", ParentItemID: fg.ID, EffectiveDate: effective}},
		{"no parent", entity.BOMHeader{BomName: "X", Rev: "A", EffectiveDate: effective}},
		{"no effective date", entity.BOMHeader{BomName: "X", Rev: "A", ParentItemID: fg.ID}},
		{"expire before effective", entity.BOMHeader{BomName: "X", Rev: "A", ParentItemID: fg.ID, EffectiveDate: effective, ExpireDate: &badExpire}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := tc.header
			if err := svc.BOM.CreateHeader(ctx, &h, "tester"); !errors.Is(err, ErrValidationFailed) {
				t.Errorf("CreateHeader err = %v, want ErrValidationFailed", err)
			}
		})
	}
}

func TestCreateHeaderDuplicateNameRev(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-DUP", "成品", entity.ItemTypeFG, "", "")
	seedBOM(t, svc, "重复-BOM", "A", fg.ID)

	err := svc.BOM.CreateHeader(ctx, &entity.BOMHeader{
		BomName:       "重复-BOM",
		Rev:           "A",
		ParentItemID:  fg.ID,
		EffectiveDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local),
	}, "tester")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("CreateHeader err = %v, want ErrDuplicateKey", err)
	}

	// 同名不同版本可以共存
	err = svc.BOM.CreateHeader(ctx, &entity.BOMHeader{
		BomName:       "重复-BOM",
		Rev:           "B",
		ParentItemID:  fg.ID,
		EffectiveDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local),
		IsActive:      true,
	}, "tester")
	if err != nil {
		t.Fatalf("CreateHeader rev B: %v", err)
	}
}

func TestAddLineDuplicateChild(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-L", "成品L", entity.ItemTypeFG, "", "")
	rm := seedItem(t, repos, "RM-L", "原料L", entity.ItemTypeRM, "", "")
	bom := seedBOM(t, svc, "成品L-BOM", "A", fg.ID)
	seedLine(t, svc, bom.ID, rm.ID, 1, 0)

	err := svc.BOM.AddLine(ctx, &entity.BOMLine{BomID: bom.ID, ChildItemID: rm.ID, QtyPer: 2}, "tester")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("AddLine err = %v, want ErrDuplicateKey", err)
	}
}

// 相同字段值重提交：成功返回但不产生历史行
func TestNoOpUpdateIsSilent(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-N", "成品N", entity.ItemTypeFG, "", "")
	bom := seedBOM(t, svc, "成品N-BOM", "A", fg.ID)

	before := len(historyFor(t, svc, bom.ID))

	fetched, err := svc.BOM.GetHeader(ctx, bom.ID)
	if err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	if err := svc.BOM.UpdateHeader(ctx, fetched, "tester"); err != nil {
		t.Fatalf("UpdateHeader: %v", err)
	}

	after := len(historyFor(t, svc, bom.ID))
	if after != before {
		t.Errorf("history rows after no-op update = %d, want %d", after, before)
	}
}

func TestEffectiveUpdateLogsOnce(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-E", "成品E", entity.ItemTypeFG, "", "")
	bom := seedBOM(t, svc, "成品E-BOM", "A", fg.ID)
	before := len(historyFor(t, svc, bom.ID))

	fetched, err := svc.BOM.GetHeader(ctx, bom.ID)
	if err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	fetched.Remark = "工艺调整"
	if err := svc.BOM.UpdateHeader(ctx, fetched, "tester"); err != nil {
		t.Fatalf("UpdateHeader: %v", err)
	}

	records := historyFor(t, svc, bom.ID)
	if len(records) != before+1 {
		t.Fatalf("history rows = %d, want %d", len(records), before+1)
	}
	latest := records[0]
	if latest.OperationType != entity.OpUpdate || latest.Target != entity.TargetHeader {
		t.Errorf("latest record = %s/%s, want UPDATE/HEADER", latest.OperationType, latest.Target)
	}
	if latest.OldData == "" || latest.NewData == "" {
		t.Error("update record missing before/after snapshots")
	}
}

// 级联删除：行DELETE在头DELETE之前落账
func TestDeleteHeaderCascadeHistoryOrder(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-DEL", "成品", entity.ItemTypeFG, "", "")
	rm1 := seedItem(t, repos, "RM-DEL1", "原料1", entity.ItemTypeRM, "", "")
	rm2 := seedItem(t, repos, "RM-DEL2", "原料2", entity.ItemTypeRM, "", "")
	bom := seedBOM(t, svc, "级联-BOM", "A", fg.ID)
	seedLine(t, svc, bom.ID, rm1.ID, 1, 0)
	seedLine(t, svc, bom.ID, rm2.ID, 2, 0)

	if err := svc.BOM.DeleteHeader(ctx, bom.ID, "tester"); err != nil {
		t.Fatalf("DeleteHeader: %v", err)
	}

	if _, err := svc.BOM.GetHeader(ctx, bom.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetHeader after delete err = %v, want ErrNotFound", err)
	}

	// 历史按id倒序返回：最新一条是头DELETE，其前是两条行DELETE
	records := historyFor(t, svc, bom.ID)
	if len(records) < 3 {
		t.Fatalf("history rows = %d, want >= 3", len(records))
	}
	if records[0].OperationType != entity.OpDelete || records[0].Target != entity.TargetHeader {
		t.Errorf("latest record = %s/%s, want DELETE/HEADER", records[0].OperationType, records[0].Target)
	}
	for i := 1; i <= 2; i++ {
		if records[i].OperationType != entity.OpDelete || records[i].Target != entity.TargetLine {
			t.Errorf("record[%d] = %s/%s, want DELETE/LINE", i, records[i].OperationType, records[i].Target)
		}
		if records[i].Remark != "随BOM头级联删除" {
			t.Errorf("record[%d] remark = %q", i, records[i].Remark)
		}
	}
}

func TestDeleteLineMissingTarget(t *testing.T) {
	svc, _ := newTestServices(t)
	err := svc.BOM.DeleteLine(context.Background(), 9999, "tester")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteLine err = %v, want ErrNotFound", err)
	}
}

func TestBOMStatusDerivation(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-ST", "成品ST", entity.ItemTypeFG, "", "")
	rm := seedItem(t, repos, "RM-ST", "原料ST", entity.ItemTypeRM, "", "")
	bom := seedBOM(t, svc, "状态-BOM", "A", fg.ID)
	seedLine(t, svc, bom.ID, rm.ID, 1, 0)

	status, err := svc.BOM.GetBOMStatus(ctx, bom.ID)
	if err != nil {
		t.Fatalf("GetBOMStatus: %v", err)
	}
	if status != entity.BOMStatusValid {
		t.Errorf("status = %q, want 有效", status)
	}

	// 停用子件后派生为失效，并列出失效明细
	if err := svc.Item.SoftDelete(ctx, rm.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	detail, err := svc.BOM.GetBOMStatusDetail(ctx, bom.ID)
	if err != nil {
		t.Fatalf("GetBOMStatusDetail: %v", err)
	}
	if detail.Status != entity.BOMStatusExpired {
		t.Errorf("status = %q, want 失效", detail.Status)
	}
	if len(detail.Disabled) != 1 || detail.Disabled[0].Role != "子件" || detail.Disabled[0].ItemCode != "RM-ST" {
		t.Errorf("disabled = %+v, want single 子件 RM-ST", detail.Disabled)
	}

	// 停用父件同样派生为失效，角色为父件
	if err := svc.Item.SoftDelete(ctx, fg.ID); err != nil {
		t.Fatalf("SoftDelete parent: %v", err)
	}
	detail, err = svc.BOM.GetBOMStatusDetail(ctx, bom.ID)
	if err != nil {
		t.Fatalf("GetBOMStatusDetail: %v", err)
	}
	if detail.Status != entity.BOMStatusExpired {
		t.Errorf("status = %q, want 失效", detail.Status)
	}
	var roles []string
	for _, d := range detail.Disabled {
		roles = append(roles, d.Role)
	}
	if len(detail.Disabled) != 2 || detail.Disabled[0].Role != "父件" || detail.Disabled[0].ItemCode != "FG-ST" {
		t.Errorf("disabled roles = %v, want 父件 first then 子件", roles)
	}

	// 头不存在为未知
	detail, err = svc.BOM.GetBOMStatusDetail(ctx, 9999)
	if err != nil {
		t.Fatalf("GetBOMStatusDetail missing: %v", err)
	}
	if detail.Status != entity.BOMStatusUnknown {
		t.Errorf("status = %q, want 未知", detail.Status)
	}
}

func TestSearchByComponent(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-SRCH", "成品", entity.ItemTypeFG, "", "")
	rm := seedItem(t, repos, "RM-SRCH", "特种原料", entity.ItemTypeRM, "", "")
	other := seedItem(t, repos, "RM-OTHER", "普通原料", entity.ItemTypeRM, "", "")

	bomA := seedBOM(t, svc, "检索-BOM", "A", fg.ID)
	seedLine(t, svc, bomA.ID, rm.ID, 1, 0)
	bomB := seedBOM(t, svc, "检索-BOM", "B", fg.ID)
	seedLine(t, svc, bomB.ID, other.ID, 1, 0)

	headers, err := svc.BOM.SearchByComponent(ctx, "RM-SRCH")
	if err != nil {
		t.Fatalf("SearchByComponent: %v", err)
	}
	if len(headers) != 1 || headers[0].ID != bomA.ID {
		t.Fatalf("headers = %+v, want only rev A", headers)
	}
}
