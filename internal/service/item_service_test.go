package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
)

func TestItemCreateValidation(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	cases := []struct {
		name string
		item entity.Item
	}{
		{"empty code", entity.Item{CnName: "名称", ItemType: entity.ItemTypeRM}},
		{"empty name", entity.Item{ItemCode: "X-1", ItemType: entity.ItemTypeRM}},
		{"bad type", entity.Item{ItemCode: "X-1", CnName: "名称", ItemType: "WIDGET"}},
		{"negative safety stock", entity.Item{ItemCode: "X-1", CnName: "名称", ItemType: entity.ItemTypeRM, SafetyStock: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := tc.item
			if err := svc.Item.Create(ctx, &item); !errors.Is(err, ErrValidationFailed) {
				t.Errorf("Create err = %v, want ErrValidationFailed", err)
			}
		})
	}
}

func TestItemCreateDuplicateCode(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	seedItem(t, repos, "RM-001", "原料一", entity.ItemTypeRM, "", "")
	err := svc.Item.Create(ctx, &entity.Item{
		ItemCode: "RM-001",
		CnName:   "原料一重复",
		ItemType: entity.ItemTypeRM,
	})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Create err = %v, want ErrDuplicateKey", err)
	}
}

func TestItemUpdateParentCycle(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	grandpa := seedItem(t, repos, "FG-G", "祖", entity.ItemTypeFG, "", "")
	parent := seedItem(t, repos, "SFG-P", "父", entity.ItemTypeSFG, "", "")
	child := seedItem(t, repos, "RM-C", "子", entity.ItemTypeRM, "", "")

	parent.ParentItemID = &grandpa.ID
	if err := svc.Item.Update(ctx, parent); err != nil {
		t.Fatalf("Update parent: %v", err)
	}
	child.ParentItemID = &parent.ID
	if err := svc.Item.Update(ctx, child); err != nil {
		t.Fatalf("Update child: %v", err)
	}

	// 祖先挂到后代下面成环
	grandpa.ParentItemID = &child.ID
	err := svc.Item.Update(ctx, grandpa)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("Update err = %v, want ErrCycleDetected", err)
	}

	// 自身作父同样拒绝
	child.ParentItemID = &child.ID
	err = svc.Item.Update(ctx, child)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("self-parent err = %v, want ErrCycleDetected", err)
	}
}

func TestItemParentCandidatesExcludeDescendants(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	root := seedItem(t, repos, "FG-ROOT", "根", entity.ItemTypeFG, "", "")
	mid := seedItem(t, repos, "SFG-MID", "中", entity.ItemTypeSFG, "", "")
	leaf := seedItem(t, repos, "RM-LEAF", "叶", entity.ItemTypeRM, "", "")
	outsider := seedItem(t, repos, "RM-OUT", "旁系", entity.ItemTypeRM, "", "")

	mid.ParentItemID = &root.ID
	if err := svc.Item.Update(ctx, mid); err != nil {
		t.Fatalf("Update mid: %v", err)
	}
	leaf.ParentItemID = &mid.ID
	if err := svc.Item.Update(ctx, leaf); err != nil {
		t.Fatalf("Update leaf: %v", err)
	}

	candidates, err := svc.Item.GetParentCandidates(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetParentCandidates: %v", err)
	}
	ids := make(map[int64]bool)
	for _, c := range candidates {
		ids[c.ID] = true
	}
	for _, banned := range []int64{root.ID, mid.ID, leaf.ID} {
		if ids[banned] {
			t.Errorf("candidates contain excluded item %d", banned)
		}
	}
	if !ids[outsider.ID] {
		t.Error("candidates missing unrelated item")
	}
}

func TestItemHierarchyChain(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	root := seedItem(t, repos, "FG-H1", "根", entity.ItemTypeFG, "", "")
	mid := seedItem(t, repos, "SFG-H2", "中", entity.ItemTypeSFG, "", "")
	leaf := seedItem(t, repos, "RM-H3", "叶", entity.ItemTypeRM, "", "")

	mid.ParentItemID = &root.ID
	if err := svc.Item.Update(ctx, mid); err != nil {
		t.Fatalf("Update mid: %v", err)
	}
	leaf.ParentItemID = &mid.ID
	if err := svc.Item.Update(ctx, leaf); err != nil {
		t.Fatalf("Update leaf: %v", err)
	}

	chain, err := svc.Item.Hierarchy(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("Hierarchy: %v", err)
	}
	want := []string{"RM-H3", "SFG-H2", "FG-H1"}
	if len(chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(chain), len(want))
	}
	for i, code := range want {
		if chain[i].ItemCode != code {
			t.Errorf("chain[%d] = %s, want %s", i, chain[i].ItemCode, code)
		}
	}
}

func TestItemSoftDelete(t *testing.T) {
	svc, repos := newTestServices(t)
	ctx := context.Background()

	item := seedItem(t, repos, "RM-SD", "待停用", entity.ItemTypeRM, "", "")
	if err := svc.Item.SoftDelete(ctx, item.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	got, err := svc.Item.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.IsActive {
		t.Error("item still active after soft delete")
	}

	if err := svc.Item.SoftDelete(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("SoftDelete missing err = %v, want ErrNotFound", err)
	}
}
