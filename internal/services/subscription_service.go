package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abhiram-s2002/racer-sub005/internal/config"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

// ISubscriptionService defines the interface for subscription operations.
type ISubscriptionService interface {
	Activate(ctx context.Context, username, plan string) (*models.Subscription, error)
	GetStatus(ctx context.Context, username string) (*models.SubscriptionStatus, error)
	SweepExpired(ctx context.Context) (int64, error)
}

const subscriptionsCollection = "subscriptions"

// subscriptionService implements ISubscriptionService.
type subscriptionService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(db *mongo.Database, cfg *config.Config) ISubscriptionService {
	return &subscriptionService{db: db, cfg: cfg}
}

// Activate starts or extends a subscription for the user. An existing active
// subscription is extended from its current end date, an expired or missing
// one starts from now.
func (s *subscriptionService) Activate(ctx context.Context, username, plan string) (*models.Subscription, error) {
	if plan == "" {
		return nil, fmt.Errorf("subscription plan must not be empty")
	}

	collection := s.db.Collection(subscriptionsCollection)
	now := time.Now().UTC()
	planDuration := time.Duration(s.cfg.SubscriptionPlanDays) * 24 * time.Hour

	var existing models.Subscription
	err := collection.FindOne(ctx, bson.M{"username": username}).Decode(&existing)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error finding subscription for %s: %w", username, err)
	}

	start := now
	if err == nil && existing.ActiveUntil.After(now) {
		start = existing.ActiveUntil
	}
	activeUntil := start.Add(planDuration)

	update := bson.M{
		"$set": bson.M{
			"plan":         plan,
			"active_until": activeUntil,
			"expired":      false,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{
			"username":   username,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var sub models.Subscription
	if err := collection.FindOneAndUpdate(ctx, bson.M{"username": username}, update, opts).Decode(&sub); err != nil {
		return nil, fmt.Errorf("error upserting subscription for %s: %w", username, err)
	}

	log.Printf("Subscription for %s active until %s (plan: %s)", username, sub.ActiveUntil.Format(time.RFC3339), plan)
	return &sub, nil
}

// GetStatus derives the subscription state for a user. The state comes from
// ActiveUntil, not the Expired flag, so a stale sweep cannot report an
// active subscription as expired.
func (s *subscriptionService) GetStatus(ctx context.Context, username string) (*models.SubscriptionStatus, error) {
	var sub models.Subscription
	err := s.db.Collection(subscriptionsCollection).FindOne(ctx, bson.M{"username": username}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.SubscriptionStatus{State: models.SubscriptionStateNone}, nil
		}
		return nil, fmt.Errorf("error finding subscription for %s: %w", username, err)
	}

	status := &models.SubscriptionStatus{
		Plan:        sub.Plan,
		ActiveUntil: &sub.ActiveUntil,
	}
	if sub.ActiveUntil.After(time.Now().UTC()) {
		status.State = models.SubscriptionStateActive
	} else {
		status.State = models.SubscriptionStateExpired
	}
	return status, nil
}

// SweepExpired flags subscriptions whose ActiveUntil has passed. Run
// periodically from the background worker; returns the number flagged.
func (s *subscriptionService) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"expired":      false,
		"active_until": bson.M{"$lt": now},
	}
	update := bson.M{"$set": bson.M{
		"expired":    true,
		"updated_at": now,
	}}

	result, err := s.db.Collection(subscriptionsCollection).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("db error sweeping expired subscriptions: %w", err)
	}
	if result.ModifiedCount > 0 {
		log.Printf("Flagged %d expired subscriptions", result.ModifiedCount)
	}
	return result.ModifiedCount, nil
}
