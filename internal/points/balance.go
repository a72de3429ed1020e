package points

import (
	"context"
	"log/slog"

	"github.com/dukerupert/praisepoints/internal/metrics"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/store"
)

// Tracker is the only writer of a child's total and reserved counters.
// Mutating methods take the caller's transaction.
type Tracker struct {
	logger *slog.Logger
}

func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{logger: logger}
}

func (t *Tracker) Balance(ctx context.Context, db store.DBTX, childID int64) (model.Balance, error) {
	b, err := store.NewBalanceStore(db).Get(ctx, childID)
	if err != nil {
		return model.Balance{}, err
	}
	if b == nil {
		return model.Balance{}, errorf(CodeNotFound, "child %d not found", childID)
	}
	return *b, nil
}

func (t *Tracker) Available(ctx context.Context, db store.DBTX, childID int64) (int, error) {
	b, err := t.Balance(ctx, db, childID)
	if err != nil {
		return 0, err
	}
	return b.Available, nil
}

// Reserve holds amount points against available.
func (t *Tracker) Reserve(ctx context.Context, tx store.DBTX, childID int64, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	ok, err := store.NewBalanceStore(tx).Reserve(ctx, childID, amount)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	b, err := t.Balance(ctx, tx, childID)
	if err != nil {
		return err
	}
	return errorf(CodeInsufficientAvailable, "need %d points, %d available", amount, b.Available)
}

// Release gives back reserved points. Reserved never drops below zero; a
// release larger than what is reserved means the books are already wrong, so
// it is logged and counted rather than failed.
func (t *Tracker) Release(ctx context.Context, tx store.DBTX, childID int64, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b, err := t.Balance(ctx, tx, childID)
	if err != nil {
		return err
	}
	if amount > b.Reserved {
		t.logger.Error("release exceeds reserved points",
			"child_id", childID, "amount", amount, "reserved", b.Reserved)
		metrics.RecordReleaseUnderflow()
	}
	if _, err := store.NewBalanceStore(tx).Release(ctx, childID, amount); err != nil {
		return err
	}
	return nil
}

func (t *Tracker) credit(ctx context.Context, tx store.DBTX, childID int64, amount int) error {
	ok, err := store.NewBalanceStore(tx).AddTotal(ctx, childID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return errorf(CodeNotFound, "child %d not found", childID)
	}
	return nil
}

// debit lowers total. Points held by other pending purchases cannot be spent.
func (t *Tracker) debit(ctx context.Context, tx store.DBTX, childID int64, amount int) error {
	b, err := t.Balance(ctx, tx, childID)
	if err != nil {
		return err
	}
	if amount > b.Total {
		return errorf(CodeInsufficientBalance, "need %d points, balance is %d", amount, b.Total)
	}
	ok, err := store.NewBalanceStore(tx).SubtractTotal(ctx, childID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return errorf(CodeInsufficientBalance, "need %d points, %d not reserved elsewhere", amount, b.Available)
	}
	return nil
}
