package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatStatus is the lifecycle state of a chat thread.
type ChatStatus string

const (
	ChatStatusActive ChatStatus = "active"
)

// Chat is a two-party messaging thread scoped to a single listing. The
// participant pair is unordered: ParticipantA/ParticipantB are stored in
// lexicographic order and ParticipantsKey is the normalized "a|b" form used
// by the unique (listing_id, participants_key) index.
type Chat struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID       primitive.ObjectID `bson:"listing_id" json:"listing_id"`
	ParticipantA    string             `bson:"participant_a" json:"participant_a"`
	ParticipantB    string             `bson:"participant_b" json:"participant_b"`
	ParticipantsKey string             `bson:"participants_key" json:"-"`
	Status          ChatStatus         `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	LastMessageText string             `bson:"last_message_text,omitempty" json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time         `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
}

// NormalizeParticipants returns the two usernames in lexicographic order.
func NormalizeParticipants(userA, userB string) (string, string) {
	if userB < userA {
		return userB, userA
	}
	return userA, userB
}

// ParticipantsKey builds the order-insensitive pair key for two usernames.
func ParticipantsKey(userA, userB string) string {
	a, b := NormalizeParticipants(userA, userB)
	return a + "|" + b
}

// HasParticipant reports whether username is one of the two chat parties.
func (c *Chat) HasParticipant(username string) bool {
	return c.ParticipantA == username || c.ParticipantB == username
}

// OtherParticipant returns the counterpart of username in the chat, or ""
// if username is not a participant.
func (c *Chat) OtherParticipant(username string) string {
	switch username {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return ""
}

// SplitParticipantsKey is the inverse of ParticipantsKey.
func SplitParticipantsKey(key string) (string, string) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}
