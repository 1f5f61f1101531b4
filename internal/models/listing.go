package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AskingPrice defines the structure for monetary values.
type AskingPrice struct {
	Value        float64 `bson:"value" json:"value"`
	CurrencyCode string  `bson:"currency_code" json:"currency_code"`
}

// Listing represents a classified listing.
type Listing struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	SellerUsername string             `bson:"seller_username" json:"seller_username"`
	Title          string             `bson:"title" json:"title"`
	Body           string             `bson:"body" json:"body"`
	Tags           []string           `bson:"tags" json:"tags"`
	Images         []string           `bson:"images" json:"images"` // S3 keys
	Location       *GeoJSON           `bson:"location,omitempty" json:"location,omitempty"`
	CountryCode    string             `bson:"country_code" json:"country_code"`
	AskingPrice    *AskingPrice       `bson:"asking_price,omitempty" json:"asking_price,omitempty"`
	IsDraft        bool               `bson:"is_draft" json:"is_draft"`
	Hidden         bool               `bson:"hidden" json:"hidden"`
	Deleted        bool               `bson:"deleted" json:"-"` // Soft delete flag
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
	PublishedAt    *time.Time         `bson:"published_at,omitempty" json:"published_at,omitempty"` // When IsDraft becomes false
}
