package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the application relies on. Safe to call
// on every startup; MongoDB treats existing identical indexes as a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexesByCollection := map[string][]mongo.IndexModel{
		"users": {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetName("username_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email_unique").SetUnique(true),
			},
		},
		// Unique only while pending: once a ping is decided the sender may
		// open a new one, so the constraint is scoped with a partial filter.
		"pings": {
			{
				Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "sender_username", Value: 1}},
				Options: options.Index().
					SetName("open_ping_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "pending"}),
			},
			{
				Keys:    bson.D{{Key: "receiver_username", Value: 1}, {Key: "status", Value: 1}},
				Options: options.Index().SetName("receiver_status_1"),
			},
		},
		// The unique pair index is what makes concurrent accepts converge on a
		// single chat: the second insert fails with code 11000 and the caller
		// re-fetches the winner.
		"chats": {
			{
				Keys:    bson.D{{Key: "listing_id", Value: 1}, {Key: "participants_key", Value: 1}},
				Options: options.Index().SetName("listing_participants_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "participant_a", Value: 1}},
				Options: options.Index().SetName("participant_a_1"),
			},
			{
				Keys:    bson.D{{Key: "participant_b", Value: 1}},
				Options: options.Index().SetName("participant_b_1"),
			},
		},
		"messages": {
			{
				Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("chat_created_1"),
			},
		},
		"ratings": {
			{
				Keys: bson.D{
					{Key: "listing_id", Value: 1},
					{Key: "rater_username", Value: 1},
					{Key: "rated_username", Value: 1},
				},
				Options: options.Index().SetName("listing_rater_rated_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "rated_username", Value: 1}},
				Options: options.Index().SetName("rated_username_1"),
			},
		},
		"listings": {
			{
				Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
				Options: options.Index().SetName("location_2dsphere").SetSphereVersion(3),
			},
			{
				Keys:    bson.D{{Key: "seller_username", Value: 1}},
				Options: options.Index().SetName("seller_username_1"),
			},
			{
				Keys: bson.D{{Key: "title", Value: "text"}, {Key: "body", Value: "text"}, {Key: "tags", Value: "text"}},
				Options: options.Index().
					SetName("ListingTextIndex").
					SetWeights(bson.M{"title": 3, "tags": 2, "body": 1}).
					SetDefaultLanguage("english"),
			},
		},
		"subscriptions": {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetName("username_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "active_until", Value: 1}, {Key: "expired", Value: 1}},
				Options: options.Index().SetName("active_until_expired_1"),
			},
		},
		"locations": {
			{
				Keys:    bson.D{{Key: "parent_id", Value: 1}},
				Options: options.Index().SetName("parent_id_1"),
			},
			{
				Keys: bson.D{{Key: "name", Value: "text"}, {Key: "alt_names", Value: "text"}},
				Options: options.Index().
					SetName("LocationTextIndex").
					SetWeights(bson.M{"alt_names": 1, "name": 2}).
					SetDefaultLanguage("english"),
			},
			{
				Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
				Options: options.Index().SetName("location_2dsphere").SetSphereVersion(3),
			},
		},
		"email_templates": {
			{
				Keys:    bson.D{{Key: "template_id", Value: 1}, {Key: "locale", Value: 1}},
				Options: options.Index().SetName("template_locale_unique").SetUnique(true),
			},
		},
	}

	for collection, indexes := range indexesByCollection {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes for '%s' collection: %w", collection, err)
		}
	}
	return nil
}
