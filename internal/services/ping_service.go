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

	"github.com/abhiram-s2002/racer-sub005/internal/config"
	"github.com/abhiram-s2002/racer-sub005/internal/db"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

// ErrPingNotPending is returned when a status change is attempted on a ping
// that has already been accepted or rejected. Pending is the only state a
// ping can leave; accepted and rejected are terminal.
var ErrPingNotPending = errors.New("ping has already been responded to")

// ErrPingExists is returned when the sender already has an open ping for the
// same listing.
var ErrPingExists = errors.New("an open ping for this listing already exists")

// ErrSelfPing is returned when a user pings their own listing.
var ErrSelfPing = errors.New("cannot ping your own listing")

// IPingService defines the interface for ping operations.
type IPingService interface {
	SendPing(ctx context.Context, listingID primitive.ObjectID, sender, receiver, message string) (*models.Ping, error)
	FindByID(ctx context.Context, pingID primitive.ObjectID) (*models.Ping, error)
	UpdateStatus(ctx context.Context, pingID primitive.ObjectID, status models.PingStatus) (*models.Ping, error)
	ListForReceiver(ctx context.Context, receiver string, status *models.PingStatus, limit int) ([]models.Ping, error)
	ListForSender(ctx context.Context, sender string, status *models.PingStatus, limit int) ([]models.Ping, error)
}

const pingsCollection = "pings"

// pingService implements IPingService.
type pingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewPingService creates a new PingService.
func NewPingService(db *mongo.Database, cfg *config.Config) IPingService {
	return &pingService{db: db, cfg: cfg}
}

// SendPing creates a new pending ping from sender to receiver about a listing.
func (s *pingService) SendPing(ctx context.Context, listingID primitive.ObjectID, sender, receiver, message string) (*models.Ping, error) {
	if sender == receiver {
		return nil, ErrSelfPing
	}
	if message == "" {
		return nil, fmt.Errorf("ping must have a message")
	}
	if s.cfg.PingMaxMessageLen > 0 && len(message) > s.cfg.PingMaxMessageLen {
		return nil, fmt.Errorf("ping message exceeds %d characters", s.cfg.PingMaxMessageLen)
	}

	collection := s.db.Collection(pingsCollection)

	// The default budget of one open ping per (listing, sender) is enforced
	// by the partial unique index on the insert below. Larger budgets need a
	// count first; that path is advisory only and deployments raising the
	// budget must also drop the open_ping_unique index.
	if s.cfg.PingMaxOpenPerPair > 1 {
		openCount, err := collection.CountDocuments(ctx, bson.M{
			"listing_id":      listingID,
			"sender_username": sender,
			"status":          models.PingStatusPending,
		})
		if err != nil {
			return nil, fmt.Errorf("error checking open pings for %s on listing %s: %w", sender, listingID.Hex(), err)
		}
		if int(openCount) >= s.cfg.PingMaxOpenPerPair {
			return nil, ErrPingExists
		}
	}

	now := time.Now().UTC()
	ping := &models.Ping{
		ID:               primitive.NewObjectID(),
		ListingID:        listingID,
		SenderUsername:   sender,
		ReceiverUsername: receiver,
		Message:          message,
		Status:           models.PingStatusPending,
		CreatedAt:        now,
	}

	if _, err := collection.InsertOne(ctx, ping); err != nil {
		// Concurrent senders race through the unique index, not a pre-count:
		// the loser's insert is the only place the conflict shows up.
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrPingExists
		}
		return nil, fmt.Errorf("error inserting ping from %s on listing %s: %w", sender, listingID.Hex(), err)
	}

	return ping, nil
}

// FindByID finds a ping by its ID.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *pingService) FindByID(ctx context.Context, pingID primitive.ObjectID) (*models.Ping, error) {
	var ping models.Ping
	err := s.db.Collection(pingsCollection).FindOne(ctx, bson.M{"_id": pingID}).Decode(&ping)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding ping %s: %w", pingID.Hex(), err)
	}
	return &ping, nil
}

// UpdateStatus moves a pending ping to a terminal status. The filter includes
// status=pending so two concurrent responders cannot both win; the loser's
// update matches nothing and the actual state is diagnosed afterwards.
func (s *pingService) UpdateStatus(ctx context.Context, pingID primitive.ObjectID, status models.PingStatus) (*models.Ping, error) {
	if !status.IsDecision() {
		return nil, fmt.Errorf("status %q is not a valid decision", status)
	}

	collection := s.db.Collection(pingsCollection)
	now := time.Now().UTC()

	filter := bson.M{"_id": pingID, "status": models.PingStatusPending}
	update := bson.M{"$set": bson.M{
		"status":       status,
		"responded_at": now,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Ping
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("db error updating ping %s status: %w", pingID.Hex(), err)
	}

	// Diagnose: missing ping vs. already-decided ping.
	var existing models.Ping
	checkErr := collection.FindOne(ctx, bson.M{"_id": pingID}).Decode(&existing)
	if errors.Is(checkErr, mongo.ErrNoDocuments) {
		return nil, mongo.ErrNoDocuments
	}
	if checkErr != nil {
		return nil, fmt.Errorf("error checking ping %s after failed status update: %w", pingID.Hex(), checkErr)
	}
	return nil, ErrPingNotPending
}

// ListForReceiver returns pings addressed to the given user, newest first.
func (s *pingService) ListForReceiver(ctx context.Context, receiver string, status *models.PingStatus, limit int) ([]models.Ping, error) {
	filter := bson.M{"receiver_username": receiver}
	if status != nil {
		filter["status"] = *status
	}
	return s.list(ctx, filter, limit)
}

// ListForSender returns pings sent by the given user, newest first.
func (s *pingService) ListForSender(ctx context.Context, sender string, status *models.PingStatus, limit int) ([]models.Ping, error) {
	filter := bson.M{"sender_username": sender}
	if status != nil {
		filter["status"] = *status
	}
	return s.list(ctx, filter, limit)
}

func (s *pingService) list(ctx context.Context, filter bson.M, limit int) ([]models.Ping, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(pingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pings: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Ping
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode pings: %w", err)
	}
	return results, nil
}
