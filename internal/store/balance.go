package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/praisepoints/internal/model"
)

// BalanceStore reads and writes the two point counters on a child row. The
// guarded updates report false instead of failing when the guard does not
// hold, so callers can turn that into a domain error.
type BalanceStore struct {
	db DBTX
}

func NewBalanceStore(db DBTX) *BalanceStore {
	return &BalanceStore{db: db}
}

// Get returns nil when the child does not exist.
func (s *BalanceStore) Get(ctx context.Context, childID int64) (*model.Balance, error) {
	var total, reserved int
	err := s.db.QueryRowContext(ctx,
		`SELECT total_points, reserved_points FROM children WHERE id = ?`, childID,
	).Scan(&total, &reserved)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query balance: %w", err)
	}
	b := model.NewBalance(total, reserved)
	return &b, nil
}

func (s *BalanceStore) AddTotal(ctx context.Context, childID int64, amount int) (bool, error) {
	return s.exec(ctx, "add total",
		`UPDATE children SET total_points = total_points + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		amount, childID)
}

// SubtractTotal lowers total only while the unreserved part covers amount.
func (s *BalanceStore) SubtractTotal(ctx context.Context, childID int64, amount int) (bool, error) {
	return s.exec(ctx, "subtract total",
		`UPDATE children SET total_points = total_points - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND total_points - reserved_points >= ?`,
		amount, childID, amount)
}

// Reserve raises reserved only while available covers amount.
func (s *BalanceStore) Reserve(ctx context.Context, childID int64, amount int) (bool, error) {
	return s.exec(ctx, "reserve points",
		`UPDATE children SET reserved_points = reserved_points + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND total_points - reserved_points >= ?`,
		amount, childID, amount)
}

// Release lowers reserved, clamped at zero.
func (s *BalanceStore) Release(ctx context.Context, childID int64, amount int) (bool, error) {
	return s.exec(ctx, "release points",
		`UPDATE children SET reserved_points = MAX(0, reserved_points - ?), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		amount, childID)
}

func (s *BalanceStore) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n == 1, nil
}
