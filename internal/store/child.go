package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/praisepoints/internal/model"
)

type ChildStore struct {
	db DBTX
}

func NewChildStore(db DBTX) *ChildStore {
	return &ChildStore{db: db}
}

const childCols = `id, owner_id, name, birth_date, profile_image, COALESCE(username, ''),
	auth_key_hash IS NOT NULL, total_points, reserved_points, created_at, updated_at`

func scanChild(s scanner) (*model.Child, error) {
	var c model.Child
	var total, reserved int
	err := s.Scan(&c.ID, &c.OwnerID, &c.Name, &c.BirthDate, &c.ProfileImage, &c.Username,
		&c.HasAuthKey, &total, &reserved, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Balance = model.NewBalance(total, reserved)
	return &c, nil
}

func (s *ChildStore) Create(ctx context.Context, ownerID int64, in model.ChildInput) (*model.Child, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO children (owner_id, name, birth_date, profile_image, username, auth_key_hash)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ownerID, in.Name, in.BirthDate, in.ProfileImage, nullString(in.Username), nullString(in.AuthKeyHash),
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// ListByOwner returns the owner's children ordered by name.
func (s *ChildStore) ListByOwner(ctx context.Context, ownerID int64) ([]model.Child, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+childCols+` FROM children WHERE owner_id = ? ORDER BY name ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

func (s *ChildStore) GetByID(ctx context.Context, id int64) (*model.Child, error) {
	c, err := scanChild(s.db.QueryRowContext(ctx, `SELECT `+childCols+` FROM children WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query child: %w", err)
	}
	return c, nil
}

func (s *ChildStore) GetByUsername(ctx context.Context, username string) (*model.Child, error) {
	c, err := scanChild(s.db.QueryRowContext(ctx, `SELECT `+childCols+` FROM children WHERE username = ?`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query child by username: %w", err)
	}
	return c, nil
}

// GetAuthKeyHash returns "" when the child has no login key.
func (s *ChildStore) GetAuthKeyHash(ctx context.Context, id int64) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT auth_key_hash FROM children WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("child not found")
	}
	if err != nil {
		return "", fmt.Errorf("query auth key: %w", err)
	}
	return hash.String, nil
}

// Update rewrites the profile fields. Points are never touched here.
func (s *ChildStore) Update(ctx context.Context, id int64, in model.ChildInput) (*model.Child, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE children SET name = ?, birth_date = ?, profile_image = ?, username = ?,
		 auth_key_hash = COALESCE(?, auth_key_hash), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Name, in.BirthDate, in.ProfileImage, nullString(in.Username), nullString(in.AuthKeyHash), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the child unless it still has PENDING purchases, checked in
// the same statement. It reports whether a row was deleted.
func (s *ChildStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM children WHERE id = ?
		 AND NOT EXISTS (SELECT 1 FROM purchases WHERE child_id = ? AND status = 'PENDING')`,
		id, id,
	)
	if err != nil {
		return false, fmt.Errorf("delete child: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete child rows: %w", err)
	}
	return n == 1, nil
}

func (s *ChildStore) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM children WHERE username = ? AND id != ?`,
		username, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return count > 0, nil
}
