package model

import "time"

type RewardCategory string

const (
	CategoryToy        RewardCategory = "TOY"
	CategorySnack      RewardCategory = "SNACK"
	CategoryExperience RewardCategory = "EXPERIENCE"
	CategoryMoney      RewardCategory = "MONEY"
	CategoryOther      RewardCategory = "OTHER"
)

// Valid reports whether c is one of the known categories.
func (c RewardCategory) Valid() bool {
	switch c {
	case CategoryToy, CategorySnack, CategoryExperience, CategoryMoney, CategoryOther:
		return true
	}
	return false
}

type Reward struct {
	ID             int64          `json:"id"`
	OwnerID        int64          `json:"-"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	RequiredPoints int            `json:"required_points"`
	Category       RewardCategory `json:"category"`
	ImageURL       string         `json:"image_url"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RewardInput carries the editable fields of a reward.
type RewardInput struct {
	Name           string
	Description    string
	RequiredPoints int
	Category       RewardCategory
	ImageURL       string
	Active         bool
}
