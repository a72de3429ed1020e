package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/praisepoints/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(s scanner) (*model.Reward, error) {
	var r model.Reward
	var active int

	err := s.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Description, &r.RequiredPoints, &r.Category,
		&r.ImageURL, &active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, owner_id, name, description, required_points, category, image_url, active, created_at, updated_at`

func (s *RewardStore) Create(ctx context.Context, ownerID int64, in model.RewardInput) (*model.Reward, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (owner_id, name, description, required_points, category, image_url, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ownerID, in.Name, in.Description, in.RequiredPoints, in.Category, in.ImageURL, boolToInt(in.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListByOwner returns all of the owner's rewards, active first, then by name.
// An empty category matches every category.
func (s *RewardStore) ListByOwner(ctx context.Context, ownerID int64, category model.RewardCategory) ([]model.Reward, error) {
	return s.list(ctx, "list rewards",
		`SELECT `+rewardCols+` FROM rewards
		 WHERE owner_id = ? AND (? = '' OR category = ?)
		 ORDER BY active DESC, name ASC`,
		ownerID, category, category)
}

// ListActiveByOwner returns the rewards a child of ownerID may request,
// cheapest first.
func (s *RewardStore) ListActiveByOwner(ctx context.Context, ownerID int64, category model.RewardCategory) ([]model.Reward, error) {
	return s.list(ctx, "list active rewards",
		`SELECT `+rewardCols+` FROM rewards
		 WHERE owner_id = ? AND active = 1 AND (? = '' OR category = ?)
		 ORDER BY required_points ASC, name ASC`,
		ownerID, category, category)
}

func (s *RewardStore) list(ctx context.Context, op, query string, args ...any) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(ctx context.Context, id int64, in model.RewardInput) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET name = ?, description = ?, required_points = ?, category = ?, image_url = ?,
		 active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.Name, in.Description, in.RequiredPoints, in.Category, in.ImageURL, boolToInt(in.Active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Toggle flips the active flag and returns the updated reward.
func (s *RewardStore) Toggle(ctx context.Context, id int64) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET active = 1 - active, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

// HasPurchases reports whether any purchase, in any state, references the
// reward. Such rewards can only be deactivated.
func (s *RewardStore) HasPurchases(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchases WHERE reward_id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count reward purchases: %w", err)
	}
	return n > 0, nil
}
