package points

import (
	"context"

	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/store"
)

// Page selects a window of history. A zero Limit means everything.
type Page struct {
	Limit  int
	Offset int
}

// Ledger appends EARN and SPEND entries. Each entry and its matching change to
// total are written through the same transaction.
type Ledger struct {
	tracker *Tracker
}

func NewLedger(tracker *Tracker) *Ledger {
	return &Ledger{tracker: tracker}
}

func (l *Ledger) RecordEarn(ctx context.Context, tx store.DBTX, childID int64, amount int, reason, message string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := l.tracker.credit(ctx, tx, childID, amount); err != nil {
		return nil, err
	}
	return store.NewLedgerStore(tx).Insert(ctx, childID, model.EntryEarn, amount, reason, message, nil)
}

func (l *Ledger) RecordSpend(ctx context.Context, tx store.DBTX, childID int64, amount int, reason string, purchaseID int64) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := l.tracker.debit(ctx, tx, childID, amount); err != nil {
		return nil, err
	}
	return store.NewLedgerStore(tx).Insert(ctx, childID, model.EntrySpend, amount, reason, "", &purchaseID)
}

// History lists a child's entries newest first, with the total entry count.
func (l *Ledger) History(ctx context.Context, db store.DBTX, childID int64, page Page) ([]model.LedgerEntry, int, error) {
	ls := store.NewLedgerStore(db)
	entries, err := ls.ListByChild(ctx, childID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := ls.CountByChild(ctx, childID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
