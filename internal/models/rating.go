package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Rating is a 1..5 star review one user leaves another after a transaction
// on a listing. At most one rating per (listing, rater, rated) triple,
// enforced by a unique index.
type Rating struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID     primitive.ObjectID `bson:"listing_id" json:"listing_id"`
	RaterUsername string             `bson:"rater_username" json:"rater_username"`
	RatedUsername string             `bson:"rated_username" json:"rated_username"`
	Stars         int                `bson:"stars" json:"stars"`
	Comment       string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// RatingSummary is the aggregate shown on profile and listing cards.
type RatingSummary struct {
	Username string  `bson:"_id" json:"username"`
	Average  float64 `bson:"average" json:"average"`
	Count    int     `bson:"count" json:"count"`
}
