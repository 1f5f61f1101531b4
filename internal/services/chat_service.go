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

// ErrChatNotFound is returned when no chat exists for a listing/participant
// pair. For an accepted ping this signals that the chat bootstrap did not
// complete and should be retried.
var ErrChatNotFound = errors.New("chat not found")

// IChatService defines the interface for chat operations.
type IChatService interface {
	GetOrCreateChat(ctx context.Context, listingID primitive.ObjectID, userA, userB string) (*models.Chat, bool, error)
	FindChat(ctx context.Context, listingID primitive.ObjectID, userA, userB string) (*models.Chat, error)
	FindByID(ctx context.Context, chatID primitive.ObjectID) (*models.Chat, error)
	ListForUser(ctx context.Context, username string, limit int) ([]models.Chat, error)
	TouchLastMessage(ctx context.Context, chatID primitive.ObjectID, text string, at time.Time) error
}

const chatsCollection = "chats"

// chatService implements IChatService.
type chatService struct {
	db *mongo.Database
}

// NewChatService creates a new ChatService.
func NewChatService(database *mongo.Database) IChatService {
	return &chatService{db: database}
}

// GetOrCreateChat returns the chat for (listing, pair), creating it if needed.
// The second return value reports whether this call created the chat.
//
// The unique index on (listing_id, participants_key) makes this idempotent
// under concurrency: if two callers race, one insert fails with a duplicate
// key error and we fetch the winner's document instead.
func (s *chatService) GetOrCreateChat(ctx context.Context, listingID primitive.ObjectID, userA, userB string) (*models.Chat, bool, error) {
	if userA == userB {
		return nil, false, fmt.Errorf("chat requires two distinct participants")
	}

	existing, err := s.FindChat(ctx, listingID, userA, userB)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrChatNotFound) {
		return nil, false, err
	}

	first, second := models.NormalizeParticipants(userA, userB)
	now := time.Now().UTC()
	chat := &models.Chat{
		ID:              primitive.NewObjectID(),
		ListingID:       listingID,
		ParticipantA:    first,
		ParticipantB:    second,
		ParticipantsKey: models.ParticipantsKey(userA, userB),
		Status:          models.ChatStatusActive,
		CreatedAt:       now,
	}

	_, insertErr := s.db.Collection(chatsCollection).InsertOne(ctx, chat)
	if insertErr == nil {
		return chat, true, nil
	}
	if !db.IsMongoDuplicateKeyError(insertErr) {
		return nil, false, fmt.Errorf("error inserting chat for listing %s pair %s: %w",
			listingID.Hex(), chat.ParticipantsKey, insertErr)
	}

	// Lost the race. The winner's chat must exist now.
	winner, findErr := s.FindChat(ctx, listingID, userA, userB)
	if findErr != nil {
		return nil, false, fmt.Errorf("duplicate chat insert for listing %s pair %s but winner not found: %w",
			listingID.Hex(), chat.ParticipantsKey, findErr)
	}
	return winner, false, nil
}

// FindChat looks up the chat for a listing and participant pair.
// Returns ErrChatNotFound if none exists.
func (s *chatService) FindChat(ctx context.Context, listingID primitive.ObjectID, userA, userB string) (*models.Chat, error) {
	var chat models.Chat
	filter := bson.M{
		"listing_id":       listingID,
		"participants_key": models.ParticipantsKey(userA, userB),
	}

	err := s.db.Collection(chatsCollection).FindOne(ctx, filter).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("error finding chat for listing %s: %w", listingID.Hex(), err)
	}
	return &chat, nil
}

// FindByID finds a chat by its ID.
func (s *chatService) FindByID(ctx context.Context, chatID primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	err := s.db.Collection(chatsCollection).FindOne(ctx, bson.M{"_id": chatID}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("error finding chat %s: %w", chatID.Hex(), err)
	}
	return &chat, nil
}

// ListForUser returns chats the user participates in, most recently active first.
func (s *chatService) ListForUser(ctx context.Context, username string, limit int) ([]models.Chat, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"participant_a": username},
		bson.M{"participant_b": username},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(chatsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats for %s: %w", username, err)
	}
	defer cursor.Close(ctx)

	var results []models.Chat
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode chats for %s: %w", username, err)
	}
	return results, nil
}

// TouchLastMessage updates the chat's last-message denormalization.
func (s *chatService) TouchLastMessage(ctx context.Context, chatID primitive.ObjectID, text string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"last_message_text": text,
		"last_message_at":   at,
	}}
	result, err := s.db.Collection(chatsCollection).UpdateByID(ctx, chatID, update)
	if err != nil {
		return fmt.Errorf("db error touching chat %s: %w", chatID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}
