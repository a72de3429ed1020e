package model

import "time"

type EntryKind string

const (
	EntryEarn  EntryKind = "EARN"
	EntrySpend EntryKind = "SPEND"
)

// LedgerEntry is an immutable point movement for a child. PurchaseID is set
// only on SPEND entries.
type LedgerEntry struct {
	ID         int64     `json:"id"`
	ChildID    int64     `json:"child_id"`
	Kind       EntryKind `json:"kind"`
	Amount     int       `json:"amount"`
	Reason     string    `json:"reason"`
	Message    string    `json:"message"`
	PurchaseID *int64    `json:"purchase_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
