package model

import "time"

type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "PENDING"
	PurchaseApproved PurchaseStatus = "APPROVED"
	PurchaseRejected PurchaseStatus = "REJECTED"
)

// Decider records which side closed a purchase. A child cancellation and a
// parent rejection share the REJECTED status and differ only here.
type Decider string

const (
	DecidedByNone   Decider = ""
	DecidedByParent Decider = "PARENT"
	DecidedByChild  Decider = "CHILD"
)

type Purchase struct {
	ID          int64          `json:"id"`
	ChildID     int64          `json:"child_id"`
	ChildName   string         `json:"child_name"`
	RewardID    int64          `json:"reward_id"`
	RewardName  string         `json:"reward_name"`
	Cost        int            `json:"cost"`
	Status      PurchaseStatus `json:"status"`
	DecidedBy   Decider        `json:"decided_by,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
	DecidedAt   *time.Time     `json:"decided_at"`
}
