package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/praisepoints/internal/model"
)

// LedgerStore is append-only: entries are inserted and listed, never updated.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

const ledgerCols = `id, child_id, kind, amount, reason, message, purchase_id, created_at`

func scanLedgerEntry(s scanner) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var purchaseID sql.NullInt64
	if err := s.Scan(&e.ID, &e.ChildID, &e.Kind, &e.Amount, &e.Reason, &e.Message, &purchaseID, &e.CreatedAt); err != nil {
		return nil, err
	}
	if purchaseID.Valid {
		e.PurchaseID = &purchaseID.Int64
	}
	return &e, nil
}

func (s *LedgerStore) Insert(ctx context.Context, childID int64, kind model.EntryKind, amount int, reason, message string, purchaseID *int64) (*model.LedgerEntry, error) {
	var pid sql.NullInt64
	if purchaseID != nil {
		pid = sql.NullInt64{Int64: *purchaseID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (child_id, kind, amount, reason, message, purchase_id) VALUES (?, ?, ?, ?, ?, ?)`,
		childID, kind, amount, reason, message, pid,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	e, err := scanLedgerEntry(s.db.QueryRowContext(ctx, `SELECT `+ledgerCols+` FROM ledger_entries WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ListByChild returns entries newest first. A limit of 0 returns everything.
func (s *LedgerStore) ListByChild(ctx context.Context, childID int64, limit, offset int) ([]model.LedgerEntry, error) {
	query := `SELECT ` + ledgerCols + ` FROM ledger_entries WHERE child_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{childID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *LedgerStore) CountByChild(ctx context.Context, childID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE child_id = ?`, childID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return n, nil
}

// Sums returns the EARN and SPEND totals for a child.
func (s *LedgerStore) Sums(ctx context.Context, childID int64) (earned, spent int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN kind = 'EARN' THEN amount END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'SPEND' THEN amount END), 0)
		 FROM ledger_entries WHERE child_id = ?`, childID,
	).Scan(&earned, &spent)
	if err != nil {
		return 0, 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return earned, spent, nil
}
