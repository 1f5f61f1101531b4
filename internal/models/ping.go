package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PingStatus is the lifecycle state of a ping. A ping starts as pending and
// moves exactly once to accepted or rejected; there is no way back.
type PingStatus string

const (
	PingStatusPending  PingStatus = "pending"
	PingStatusAccepted PingStatus = "accepted"
	PingStatusRejected PingStatus = "rejected"
)

// IsDecision reports whether s is a valid terminal decision for a ping.
func (s PingStatus) IsDecision() bool {
	return s == PingStatusAccepted || s == PingStatusRejected
}

// Ping represents an inquiry one user sends another about a listing.
type Ping struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID        primitive.ObjectID `bson:"listing_id" json:"listing_id"`
	SenderUsername   string             `bson:"sender_username" json:"sender_username"`
	ReceiverUsername string             `bson:"receiver_username" json:"receiver_username"`
	Message          string             `bson:"message" json:"message"` // Immutable after creation
	Status           PingStatus         `bson:"status" json:"status"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	RespondedAt      *time.Time         `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
}
