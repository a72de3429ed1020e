package model

import "time"

type Child struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"-"`
	Name         string    `json:"name"`
	BirthDate    string    `json:"birth_date"`
	ProfileImage string    `json:"profile_image"`
	Username     string    `json:"username"`
	HasAuthKey   bool      `json:"has_auth_key"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Balance
}

// ChildInput carries the editable profile fields of a child. An empty
// AuthKeyHash leaves the stored key untouched on update.
type ChildInput struct {
	Name         string
	BirthDate    string
	ProfileImage string
	Username     string
	AuthKeyHash  string
}

// Balance is a point snapshot for one child. Available is derived and never
// stored.
type Balance struct {
	Total     int `json:"total_points"`
	Reserved  int `json:"reserved_points"`
	Available int `json:"available_points"`
}

// NewBalance builds a Balance from the two stored counters.
func NewBalance(total, reserved int) Balance {
	return Balance{Total: total, Reserved: reserved, Available: total - reserved}
}
