package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is a single message within a chat. System messages are posted by
// the backend itself (e.g. the acceptance announcement) rather than a user.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ChatID         primitive.ObjectID `bson:"chat_id" json:"chat_id"`
	SenderUsername string             `bson:"sender_username" json:"sender_username"`
	Text           string             `bson:"text" json:"text"`
	System         bool               `bson:"system" json:"system"`
	Read           bool               `bson:"read" json:"read"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}
