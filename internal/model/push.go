package model

import "time"

// PushSubscription is one browser registered by a parent for web push.
type PushSubscription struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"-"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"-"`
	AuthKey    string    `json:"-"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
