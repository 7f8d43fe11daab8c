package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
)

func TestAddLineRejectsCycle(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-A", "成品A", entity.ItemTypeFG, "", "")
	sfg := seedItem(t, repos, "SFG-S", "半成品S", entity.ItemTypeSFG, "", "")
	rmY := seedItem(t, repos, "RM-Y", "原料Y", entity.ItemTypeRM, "", "")

	fgBOM := seedBOM(t, svc, "成品A-BOM", "A", fg.ID)
	seedLine(t, svc, fgBOM.ID, sfg.ID, 1, 0)
	sfgBOM := seedBOM(t, svc, "半成品S-BOM", "A", sfg.ID)
	seedLine(t, svc, sfgBOM.ID, rmY.ID, 2, 0)

	// RM-Y 的BOM里加入 FG-A：FG-A → SFG-S → RM-Y 已通路，闭环
	rmBOM := seedBOM(t, svc, "原料Y-BOM", "A", rmY.ID)
	err := svc.BOM.AddLine(ctx, &entity.BOMLine{
		BomID:       rmBOM.ID,
		ChildItemID: fg.ID,
		QtyPer:      1,
	}, "tester")
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("AddLine err = %v, want ErrCycleDetected", err)
	}
}

func TestAddLineRejectsSelfReference(t *testing.T) {
	svc, repos := newTestServices(t)

	fg := seedItem(t, repos, "FG-SELF", "成品", entity.ItemTypeFG, "", "")
	bom := seedBOM(t, svc, "自引用-BOM", "A", fg.ID)

	err := svc.BOM.AddLine(context.Background(), &entity.BOMLine{
		BomID:       bom.ID,
		ChildItemID: fg.ID,
		QtyPer:      1,
	}, "tester")
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("AddLine err = %v, want ErrCycleDetected", err)
	}
}

// 同一叶子经不同路径到达是菱形不是环
func TestHasCycleDiamondIsNotCycle(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-D", "成品D", entity.ItemTypeFG, "", "")
	sfg1 := seedItem(t, repos, "SFG-D1", "半成品D1", entity.ItemTypeSFG, "", "")
	sfg2 := seedItem(t, repos, "SFG-D2", "半成品D2", entity.ItemTypeSFG, "", "")
	rm := seedItem(t, repos, "RM-D", "原料D", entity.ItemTypeRM, "", "")

	fgBOM := seedBOM(t, svc, "成品D-BOM", "A", fg.ID)
	seedLine(t, svc, fgBOM.ID, sfg1.ID, 1, 0)
	seedLine(t, svc, fgBOM.ID, sfg2.ID, 1, 0)
	for i, sfg := range []*entity.Item{sfg1, sfg2} {
		bom := seedBOM(t, svc, sfg.CnName+"-BOM", "A", sfg.ID)
		seedLine(t, svc, bom.ID, rm.ID, float64(i+1), 0)
	}

	cyclic, err := svc.Checker.HasCycle(ctx, fg.ID, map[int64]bool{})
	if err != nil {
		t.Fatalf("HasCycle: %v", err)
	}
	if cyclic {
		t.Error("diamond structure reported as cycle")
	}
}

func TestValidateBOMStructureReportsCycle(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-V", "成品V", entity.ItemTypeFG, "", "")
	sfg := seedItem(t, repos, "SFG-V", "半成品V", entity.ItemTypeSFG, "", "")

	fgBOM := seedBOM(t, svc, "成品V-BOM", "A", fg.ID)
	seedLine(t, svc, fgBOM.ID, sfg.ID, 1, 0)
	sfgBOM := seedBOM(t, svc, "半成品V-BOM", "A", sfg.ID)
	// 绕过服务层校验直接写入环边
	if err := repos.BOM.CreateLine(ctx, &entity.BOMLine{
		BomID:       sfgBOM.ID,
		ChildItemID: fg.ID,
		QtyPer:      1,
	}); err != nil {
		t.Fatalf("CreateLine: %v", err)
	}

	problems, err := svc.BOM.ValidateStructure(ctx, fgBOM.ID)
	if err != nil {
		t.Fatalf("ValidateStructure: %v", err)
	}
	found := false
	for _, p := range problems {
		if strings.Contains(p, "循环") {
			found = true
		}
	}
	if !found {
		t.Errorf("problems = %v, want entry containing 循环", problems)
	}
}

func TestValidateBOMStructureReportsBadQty(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	fg := seedItem(t, repos, "FG-Q", "成品Q", entity.ItemTypeFG, "", "")
	rm := seedItem(t, repos, "RM-Q", "原料Q", entity.ItemTypeRM, "", "")
	bom := seedBOM(t, svc, "成品Q-BOM", "A", fg.ID)
	if err := repos.BOM.CreateLine(ctx, &entity.BOMLine{
		BomID:       bom.ID,
		ChildItemID: rm.ID,
		QtyPer:      0,
		ScrapFactor: -0.1,
	}); err != nil {
		t.Fatalf("CreateLine: %v", err)
	}

	problems, err := svc.BOM.ValidateStructure(ctx, bom.ID)
	if err != nil {
		t.Fatalf("ValidateStructure: %v", err)
	}
	if len(problems) != 2 {
		t.Fatalf("problems = %v, want qty and scrap entries", problems)
	}
}
