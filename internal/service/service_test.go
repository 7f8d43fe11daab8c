package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
	"github.com/bitfantasy/nimo-mps/internal/testutil"
)

func newTestServices(t *testing.T) (*Services, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return NewServices(repos, nil, nil, nil), repos
}

func seedItem(t *testing.T, repos *repository.Repositories, code, name, itemType, brand, spec string) *entity.Item {
	t.Helper()
	item := &entity.Item{
		ItemCode: code,
		CnName:   name,
		ItemType: itemType,
		Brand:    brand,
		ItemSpec: spec,
		Unit:     "pcs",
		IsActive: true,
	}
	if err := repos.Item.Create(context.Background(), item); err != nil {
		t.Fatalf("seed item %s: %v", code, err)
	}
	return item
}

func seedBOM(t *testing.T, svc *Services, name, rev string, parentItemID int64) *entity.BOMHeader {
	t.Helper()
	header := &entity.BOMHeader{
		BomName:       name,
		Rev:           rev,
		ParentItemID:  parentItemID,
		EffectiveDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local),
		IsActive:      true,
	}
	if err := svc.BOM.CreateHeader(context.Background(), header, "tester"); err != nil {
		t.Fatalf("seed bom %s/%s: %v", name, rev, err)
	}
	return header
}

func seedLine(t *testing.T, svc *Services, bomID, childItemID int64, qtyPer, scrap float64) *entity.BOMLine {
	t.Helper()
	line := &entity.BOMLine{
		BomID:       bomID,
		ChildItemID: childItemID,
		QtyPer:      qtyPer,
		ScrapFactor: scrap,
	}
	if err := svc.BOM.AddLine(context.Background(), line, "tester"); err != nil {
		t.Fatalf("seed line bom=%d child=%d: %v", bomID, childItemID, err)
	}
	return line
}

func seedStock(t *testing.T, repos *repository.Repositories, itemID int64, qty float64) {
	t.Helper()
	err := repos.Inventory.Create(context.Background(), &entity.InventoryBalance{
		ItemID:    itemID,
		Warehouse: "主仓",
		QtyOnHand: qty,
	})
	if err != nil {
		t.Fatalf("seed stock item=%d: %v", itemID, err)
	}
}

func historyFor(t *testing.T, svc *Services, bomID int64) []repository.DecoratedRecord {
	t.Helper()
	records, err := svc.History.ListByBOM(context.Background(), bomID)
	if err != nil {
		t.Fatalf("list history bom=%d: %v", bomID, err)
	}
	return records
}
