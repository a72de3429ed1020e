package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/praisepoints/internal/model"
)

type PurchaseStore struct {
	db DBTX
}

func NewPurchaseStore(db DBTX) *PurchaseStore {
	return &PurchaseStore{db: db}
}

// PurchaseFilter narrows purchase listings. Zero values match everything.
type PurchaseFilter struct {
	ChildID int64
	Status  model.PurchaseStatus
}

const purchaseSelect = `SELECT p.id, p.child_id, c.name, p.reward_id, r.name, p.cost, p.status,
	p.decided_by, p.requested_at, p.decided_at
	FROM purchases p
	JOIN children c ON c.id = p.child_id
	JOIN rewards r ON r.id = p.reward_id`

func scanPurchase(s scanner) (*model.Purchase, error) {
	var p model.Purchase
	var decidedAt sql.NullTime
	err := s.Scan(&p.ID, &p.ChildID, &p.ChildName, &p.RewardID, &p.RewardName, &p.Cost, &p.Status,
		&p.DecidedBy, &p.RequestedAt, &decidedAt)
	if err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		p.DecidedAt = &decidedAt.Time
	}
	return &p, nil
}

// Create inserts a PENDING purchase with the cost captured now.
func (s *PurchaseStore) Create(ctx context.Context, childID, rewardID int64, cost int) (*model.Purchase, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases (child_id, reward_id, cost, status) VALUES (?, ?, ?, ?)`,
		childID, rewardID, cost, model.PurchasePending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PurchaseStore) GetByID(ctx context.Context, id int64) (*model.Purchase, error) {
	p, err := scanPurchase(s.db.QueryRowContext(ctx, purchaseSelect+` WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

// Transition moves a PENDING purchase to a terminal status. It reports false
// when the purchase was no longer PENDING.
func (s *PurchaseStore) Transition(ctx context.Context, id int64, to model.PurchaseStatus, by model.Decider) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE purchases SET status = ?, decided_by = ?, decided_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		to, by, id, model.PurchasePending,
	)
	if err != nil {
		return false, fmt.Errorf("transition purchase: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return n == 1, nil
}

// ListByOwner returns purchases across all of the owner's children, newest
// first.
func (s *PurchaseStore) ListByOwner(ctx context.Context, ownerID int64, f PurchaseFilter) ([]model.Purchase, error) {
	rows, err := s.db.QueryContext(ctx,
		purchaseSelect+`
		 WHERE c.owner_id = ? AND (? = 0 OR p.child_id = ?) AND (? = '' OR p.status = ?)
		 ORDER BY p.requested_at DESC, p.id DESC`,
		ownerID, f.ChildID, f.ChildID, f.Status, f.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

// SumPending returns the total cost and count of a child's PENDING purchases.
func (s *PurchaseStore) SumPending(ctx context.Context, childID int64) (sum, count int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COUNT(*) FROM purchases WHERE child_id = ? AND status = ?`,
		childID, model.PurchasePending,
	).Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum pending purchases: %w", err)
	}
	return sum, count, nil
}
