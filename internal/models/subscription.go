package models

import (
	"time"
)

// SubscriptionState is the derived state of a user's subscription.
type SubscriptionState string

const (
	SubscriptionStateActive  SubscriptionState = "active"
	SubscriptionStateExpired SubscriptionState = "expired"
	SubscriptionStateNone    SubscriptionState = "none"
)

// Subscription records a user's paid plan. The authoritative state is
// derived from ActiveUntil; the Expired flag is maintained by a background
// sweep so expired records can be queried cheaply.
type Subscription struct {
	Base        `bson:",inline"`
	Username    string    `bson:"username" json:"username"`
	Plan        string    `bson:"plan" json:"plan"`
	ActiveUntil time.Time `bson:"active_until" json:"active_until"`
	Expired     bool      `bson:"expired" json:"expired"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// SubscriptionStatus is the verification payload returned to clients.
type SubscriptionStatus struct {
	State       SubscriptionState `json:"state"`
	Plan        string            `json:"plan,omitempty"`
	ActiveUntil *time.Time        `json:"active_until,omitempty"`
}
