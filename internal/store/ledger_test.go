package store

import (
	"context"
	"testing"

	"github.com/dukerupert/praisepoints/internal/model"
)

func TestLedgerInsertAndList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, c, r := seedFamily(t, db, "p@example.com")
	ls := NewLedgerStore(db)

	for i, amt := range []int{10, 20, 30} {
		e, err := ls.Insert(ctx, c.ID, model.EntryEarn, amt, "chores", "good job", nil)
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if e.PurchaseID != nil {
			t.Error("earn entry should have no purchase id")
		}
	}

	p, err := NewPurchaseStore(db).Create(ctx, c.ID, r.ID, 30)
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	spend, err := ls.Insert(ctx, c.ID, model.EntrySpend, 30, "purchase:Ice Cream", "", &p.ID)
	if err != nil {
		t.Fatalf("insert spend: %v", err)
	}
	if spend.PurchaseID == nil || *spend.PurchaseID != p.ID {
		t.Errorf("purchase id = %v, want %d", spend.PurchaseID, p.ID)
	}

	all, err := ls.ListByChild(ctx, c.ID, 0, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	if all[0].Kind != model.EntrySpend {
		t.Errorf("newest kind = %q, want SPEND", all[0].Kind)
	}

	page, err := ls.ListByChild(ctx, c.ID, 2, 2)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].Amount != 20 || page[1].Amount != 10 {
		t.Errorf("second page = %+v", page)
	}

	n, err := ls.CountByChild(ctx, c.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Errorf("count = %d, want 4", n)
	}

	earned, spent, err := ls.Sums(ctx, c.ID)
	if err != nil {
		t.Fatalf("sums: %v", err)
	}
	if earned != 60 || spent != 30 {
		t.Errorf("sums = (%d, %d), want (60, 30)", earned, spent)
	}
}

func TestLedgerSpendRequiresPurchase(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, c, r := seedFamily(t, db, "p@example.com")
	ls := NewLedgerStore(db)

	if _, err := ls.Insert(ctx, c.ID, model.EntrySpend, 5, "x", "", nil); err == nil {
		t.Error("expected error for SPEND without purchase")
	}

	p, _ := NewPurchaseStore(db).Create(ctx, c.ID, r.ID, 5)
	if _, err := ls.Insert(ctx, c.ID, model.EntrySpend, 5, "x", "", &p.ID); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if _, err := ls.Insert(ctx, c.ID, model.EntrySpend, 5, "x", "", &p.ID); err == nil {
		t.Error("expected error for second SPEND on the same purchase")
	}
}
