package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abhiram-s2002/racer-sub005/internal/db"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

// ErrAlreadyRated is returned when a user has already rated the counterpart
// for this listing.
var ErrAlreadyRated = errors.New("user already rated for this listing")

// ErrSelfRating is returned when a user attempts to rate themselves.
var ErrSelfRating = errors.New("cannot rate yourself")

// IRatingService defines the interface for rating operations.
type IRatingService interface {
	RateUser(ctx context.Context, listingID primitive.ObjectID, rater, rated string, stars int, comment string) (*models.Rating, error)
	GetSummary(ctx context.Context, username string) (*models.RatingSummary, error)
	ListForUser(ctx context.Context, username string, limit int) ([]models.Rating, error)
}

const ratingsCollection = "ratings"

// ratingService implements IRatingService.
type ratingService struct {
	db *mongo.Database
}

// NewRatingService creates a new RatingService.
func NewRatingService(database *mongo.Database) IRatingService {
	return &ratingService{db: database}
}

// RateUser records a rating from rater to rated for a listing. The unique
// (listing_id, rater, rated) index rejects repeat ratings.
func (s *ratingService) RateUser(ctx context.Context, listingID primitive.ObjectID, rater, rated string, stars int, comment string) (*models.Rating, error) {
	if rater == rated {
		return nil, ErrSelfRating
	}
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("stars must be between 1 and 5")
	}

	rating := &models.Rating{
		ID:            primitive.NewObjectID(),
		ListingID:     listingID,
		RaterUsername: rater,
		RatedUsername: rated,
		Stars:         stars,
		Comment:       comment,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := s.db.Collection(ratingsCollection).InsertOne(ctx, rating)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrAlreadyRated
		}
		return nil, fmt.Errorf("error inserting rating by %s for %s on listing %s: %w", rater, rated, listingID.Hex(), err)
	}

	return rating, nil
}

// GetSummary aggregates a user's average rating and count.
// Returns a zero-count summary when the user has no ratings.
func (s *ratingService) GetSummary(ctx context.Context, username string) (*models.RatingSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"rated_username": username}}},
		{{Key: "$group", Value: bson.M{
			"_id":     "$rated_username",
			"average": bson.M{"$avg": "$stars"},
			"count":   bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.db.Collection(ratingsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings for %s: %w", username, err)
	}
	defer cursor.Close(ctx)

	var summaries []models.RatingSummary
	if err = cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode rating summary for %s: %w", username, err)
	}

	if len(summaries) == 0 {
		return &models.RatingSummary{Username: username, Average: 0, Count: 0}, nil
	}
	return &summaries[0], nil
}

// ListForUser returns ratings received by a user, newest first.
func (s *ratingService) ListForUser(ctx context.Context, username string, limit int) ([]models.Rating, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	filter := bson.M{"rated_username": username}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(ratingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings for %s: %w", username, err)
	}
	defer cursor.Close(ctx)

	var results []models.Rating
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode ratings for %s: %w", username, err)
	}
	return results, nil
}
