package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abhiram-s2002/racer-sub005/internal/config"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, seller, title, body string, tags []string, location *models.GeoJSON, countryCode string, askingPrice *models.AskingPrice) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error)
	UpdateListing(ctx context.Context, listingID primitive.ObjectID, seller string, updates map[string]interface{}) (*models.Listing, error)
	PublishListing(ctx context.Context, listingID primitive.ObjectID, seller string) error
	HideListing(ctx context.Context, listingID primitive.ObjectID, seller string) error
	UnhideListing(ctx context.Context, listingID primitive.ObjectID, seller string) error
	DeleteListing(ctx context.Context, listingID primitive.ObjectID, seller string) error
	SearchListings(ctx context.Context, query *string, countryCode *string, tags []string, nearLocation *models.GeoJSON, maxDistanceKM *int, limit int, cursor *string) ([]models.Listing, string, error)
	AddImageToListing(ctx context.Context, listingID primitive.ObjectID, imageKey string) error
	FindListingsBySeller(ctx context.Context, seller string) ([]models.Listing, error)
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config) IListingService {
	return &listingService{db: db, cfg: cfg}
}

// CreateListing creates a new listing document in a draft state.
func (s *listingService) CreateListing(ctx context.Context, seller, title, body string, tags []string, location *models.GeoJSON, countryCode string, askingPrice *models.AskingPrice) (*models.Listing, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("listing title must not be empty")
	}
	if tags == nil {
		tags = []string{}
	}

	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()

	newListing := &models.Listing{
		ID:             primitive.NewObjectID(),
		SellerUsername: seller,
		Title:          title,
		Body:           body,
		Tags:           tags,
		Images:         []string{},
		Location:       location,
		CountryCode:    countryCode,
		AskingPrice:    askingPrice,
		IsDraft:        true,
		Hidden:         false,
		Deleted:        false,
		CreatedAt:      now,
		UpdatedAt:      now,
		PublishedAt:    nil,
	}

	if _, err := collection.InsertOne(ctx, newListing); err != nil {
		return nil, fmt.Errorf("failed to insert new listing for user %s: %w", seller, err)
	}

	return newListing, nil
}

// FindListingByID finds a non-deleted listing by its ID.
// It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	var listing models.Listing
	collection := s.db.Collection(listingsCollection)
	filter := bson.M{
		"_id":     listingID,
		"deleted": false,
	}

	err := collection.FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.Hex(), err)
	}
	return &listing, nil
}

// UpdateListing updates mutable fields of a listing owned by the specified user.
// Status flips (IsDraft, Hidden) go through the dedicated methods.
func (s *listingService) UpdateListing(ctx context.Context, listingID primitive.ObjectID, seller string, updates map[string]interface{}) (*models.Listing, error) {
	collection := s.db.Collection(listingsCollection)

	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "body", "tags", "location", "country_code", "asking_price":
			allowedUpdates[key] = value
		default:
			return nil, fmt.Errorf("field '%s' cannot be updated via UpdateListing", key)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("no valid fields provided for update")
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{
		"_id":             listingID,
		"seller_username": seller,
		"deleted":         false,
	}

	update := bson.M{"$set": allowedUpdates}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updatedListing models.Listing
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updatedListing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("listing not found, not owned by user, or cannot be updated")
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID.Hex(), err)
	}

	return &updatedListing, nil
}

// updateListingStatus updates listing status fields while checking conditions,
// diagnosing the reason when the conditional update matched nothing.
func (s *listingService) updateListingStatus(ctx context.Context, listingID primitive.ObjectID, seller string, filter, update bson.M) error {
	collection := s.db.Collection(listingsCollection)

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error updating listing %s: %w", listingID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		errCheck := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(errCheck, mongo.ErrNoDocuments) {
			return fmt.Errorf("listing %s not found", listingID.Hex())
		}
		if listing.SellerUsername != seller {
			return fmt.Errorf("listing %s does not belong to user %s", listingID.Hex(), seller)
		}
		if listing.Deleted {
			return fmt.Errorf("listing %s is deleted", listingID.Hex())
		}
		return fmt.Errorf("listing %s cannot be updated (already in desired state or other condition not met)", listingID.Hex())
	}

	return nil
}

// PublishListing publishes a draft listing.
func (s *listingService) PublishListing(ctx context.Context, listingID primitive.ObjectID, seller string) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":             listingID,
		"seller_username": seller,
		"deleted":         false,
		"is_draft":        true,
	}
	update := bson.M{
		"$set": bson.M{
			"is_draft":     false,
			"published_at": now,
			"updated_at":   now,
		},
	}
	return s.updateListingStatus(ctx, listingID, seller, filter, update)
}

// HideListing hides a published listing.
func (s *listingService) HideListing(ctx context.Context, listingID primitive.ObjectID, seller string) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":             listingID,
		"seller_username": seller,
		"deleted":         false,
		"is_draft":        false,
		"hidden":          false,
	}
	update := bson.M{
		"$set": bson.M{
			"hidden":     true,
			"hidden_at":  now,
			"updated_at": now,
		},
	}
	return s.updateListingStatus(ctx, listingID, seller, filter, update)
}

// UnhideListing unhides a hidden listing.
func (s *listingService) UnhideListing(ctx context.Context, listingID primitive.ObjectID, seller string) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":             listingID,
		"seller_username": seller,
		"deleted":         false,
		"is_draft":        false,
		"hidden":          true,
	}
	update := bson.M{
		"$set": bson.M{
			"hidden":     false,
			"updated_at": now,
		},
		"$unset": bson.M{
			"hidden_at": "",
		},
	}
	return s.updateListingStatus(ctx, listingID, seller, filter, update)
}

// DeleteListing performs a soft delete by setting the deleted flag to true.
func (s *listingService) DeleteListing(ctx context.Context, listingID primitive.ObjectID, seller string) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":             listingID,
		"seller_username": seller,
		"deleted":         false,
	}
	update := bson.M{
		"$set": bson.M{
			"deleted":    true,
			"deleted_at": now,
			"updated_at": now,
		},
	}
	return s.updateListingStatus(ctx, listingID, seller, filter, update)
}

// SearchListings searches published listings by text, tags, country and
// proximity, with cursor pagination on (published_at, _id).
func (s *listingService) SearchListings(ctx context.Context, query *string, countryCode *string, tags []string, nearLocation *models.GeoJSON, maxDistanceKM *int, limit int, cursor *string) ([]models.Listing, string, error) {
	collection := s.db.Collection(listingsCollection)

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	filter := bson.M{
		"is_draft": false,
		"hidden":   false,
		"deleted":  false,
	}

	// Text search
	if query != nil && *query != "" {
		filter["$text"] = bson.M{"$search": *query}
	}

	// Country filter
	if countryCode != nil && *countryCode != "" {
		filter["country_code"] = *countryCode
	}

	// Tag filtering; "-tag" excludes
	includeTags := []string{}
	excludeTags := []string{}
	for _, tag := range tags {
		if strings.HasPrefix(tag, "-") && len(tag) > 1 {
			excludeTags = append(excludeTags, strings.TrimPrefix(tag, "-"))
		} else if !strings.HasPrefix(tag, "-") && tag != "" {
			includeTags = append(includeTags, tag)
		}
	}
	if len(includeTags) > 0 || len(excludeTags) > 0 {
		tagFilter := bson.M{}
		if len(includeTags) > 0 {
			tagFilter["$all"] = includeTags
		}
		if len(excludeTags) > 0 {
			tagFilter["$nin"] = excludeTags
		}
		filter["tags"] = tagFilter
	}

	// Geo filtering ($nearSphere implies distance ordering)
	if nearLocation != nil && maxDistanceKM != nil && *maxDistanceKM > 0 {
		maxDistanceMeters := float64(*maxDistanceKM * 1000)
		filter["location"] = bson.M{
			"$nearSphere": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": nearLocation.Coordinates,
				},
				"$maxDistance": maxDistanceMeters,
			},
		}
	}

	opts := options.Find()
	opts.SetLimit(int64(limit + 1))

	// Sorting: text relevance when searching, otherwise newest first. When a
	// geo filter is active the $nearSphere ordering takes precedence.
	if nearLocation == nil {
		if query != nil && *query != "" {
			opts.SetProjection(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}})
			opts.SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}})
		} else {
			opts.SetSort(bson.D{{Key: "published_at", Value: -1}, {Key: "_id", Value: -1}})
		}
	}

	// Cursor handling on (published_at, _id), matching the default sort.
	if cursor != nil && *cursor != "" {
		parts := strings.Split(*cursor, "_")
		if len(parts) == 2 {
			timestampSec, tsErr := strconv.ParseInt(parts[0], 10, 64)
			lastID, idErr := primitive.ObjectIDFromHex(parts[1])
			if tsErr == nil && idErr == nil {
				cursorTime := time.Unix(timestampSec, 0)
				filter["$or"] = bson.A{
					bson.M{"published_at": cursorTime, "_id": bson.M{"$lt": lastID}},
					bson.M{"published_at": bson.M{"$lt": cursorTime}},
				}
			} else {
				log.Printf("WARN: Invalid cursor format received: %s", *cursor)
			}
		} else {
			log.Printf("WARN: Invalid cursor format received: %s", *cursor)
		}
	}

	listCursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute listing search query: %w", err)
	}
	defer listCursor.Close(ctx)

	var results []models.Listing
	if err = listCursor.All(ctx, &results); err != nil {
		return nil, "", fmt.Errorf("failed to decode listing search results: %w", err)
	}

	nextCursor := ""
	if len(results) > limit {
		lastItem := results[limit-1]
		if lastItem.PublishedAt != nil {
			nextCursor = fmt.Sprintf("%d_%s", lastItem.PublishedAt.Unix(), lastItem.ID.Hex())
		}
		results = results[:limit]
	}

	return results, nextCursor, nil
}

// AddImageToListing adds a processed image key to a listing's image array.
// It should only be called after the image processing task is complete.
func (s *listingService) AddImageToListing(ctx context.Context, listingID primitive.ObjectID, imageKey string) error {
	collection := s.db.Collection(listingsCollection)

	filter := bson.M{
		"_id":     listingID,
		"deleted": false,
	}
	update := bson.M{
		"$addToSet": bson.M{"images": imageKey},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error adding image %s to listing %s: %w", imageKey, listingID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("listing %s not found or cannot be updated when adding image", listingID.Hex())
	}
	if result.ModifiedCount == 0 {
		log.Printf("Image key %s likely already exists for listing %s", imageKey, listingID.Hex())
	}

	return nil
}

// FindListingsBySeller returns all non-deleted listings owned by a user,
// drafts included, newest first.
func (s *listingService) FindListingsBySeller(ctx context.Context, seller string) ([]models.Listing, error) {
	collection := s.db.Collection(listingsCollection)
	filter := bson.M{"seller_username": seller, "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings for user %s: %w", seller, err)
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode listings for user %s: %w", seller, err)
	}
	return results, nil
}
