package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

// ErrNotParticipant is returned when a user posts to or reads a chat they are
// not part of.
var ErrNotParticipant = errors.New("user is not a participant of this chat")

// IMessageService defines the interface for chat message operations.
type IMessageService interface {
	PostMessage(ctx context.Context, chatID primitive.ObjectID, sender, text string) (*models.Message, error)
	PostSystemMessage(ctx context.Context, chatID primitive.ObjectID, text string) (*models.Message, error)
	ListMessages(ctx context.Context, chatID primitive.ObjectID, requester string, limit int, before *time.Time) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID primitive.ObjectID, reader string) error
}

const messagesCollection = "messages"

// messageService implements IMessageService.
type messageService struct {
	db      *mongo.Database
	chatSvc IChatService
}

// NewMessageService creates a new MessageService.
func NewMessageService(database *mongo.Database, chatSvc IChatService) IMessageService {
	return &messageService{db: database, chatSvc: chatSvc}
}

// PostMessage appends a user message to a chat. The sender must be one of the
// chat's two participants.
func (s *messageService) PostMessage(ctx context.Context, chatID primitive.ObjectID, sender, text string) (*models.Message, error) {
	if text == "" {
		return nil, fmt.Errorf("message text must not be empty")
	}

	chat, err := s.chatSvc.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(sender) {
		return nil, ErrNotParticipant
	}

	return s.insert(ctx, chat, sender, text, false)
}

// PostSystemMessage appends a message authored by the backend itself, e.g.
// the acceptance announcement posted when a chat is bootstrapped.
func (s *messageService) PostSystemMessage(ctx context.Context, chatID primitive.ObjectID, text string) (*models.Message, error) {
	if text == "" {
		return nil, fmt.Errorf("message text must not be empty")
	}

	chat, err := s.chatSvc.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, chat, "", text, true)
}

func (s *messageService) insert(ctx context.Context, chat *models.Chat, sender, text string, system bool) (*models.Message, error) {
	now := time.Now().UTC()
	msg := &models.Message{
		ID:             primitive.NewObjectID(),
		ChatID:         chat.ID,
		SenderUsername: sender,
		Text:           text,
		System:         system,
		Read:           false,
		CreatedAt:      now,
	}

	if _, err := s.db.Collection(messagesCollection).InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("error inserting message into chat %s: %w", chat.ID.Hex(), err)
	}

	// The denormalized preview is best-effort; the message itself is committed.
	if err := s.chatSvc.TouchLastMessage(ctx, chat.ID, text, now); err != nil {
		log.Printf("WARN: failed to update last message preview for chat %s: %v", chat.ID.Hex(), err)
	}

	return msg, nil
}

// ListMessages returns messages of a chat, oldest first. The requester must
// be a participant. A `before` timestamp pages backwards through history.
func (s *messageService) ListMessages(ctx context.Context, chatID primitive.ObjectID, requester string, limit int, before *time.Time) ([]models.Message, error) {
	chat, err := s.chatSvc.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(requester) {
		return nil, ErrNotParticipant
	}

	if limit <= 0 || limit > 200 {
		limit = 100
	}

	filter := bson.M{"chat_id": chatID}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": *before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for chat %s: %w", chatID.Hex(), err)
	}
	defer cursor.Close(ctx)

	var results []models.Message
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode messages for chat %s: %w", chatID.Hex(), err)
	}
	return results, nil
}

// MarkRead marks all messages not sent by the reader as read.
func (s *messageService) MarkRead(ctx context.Context, chatID primitive.ObjectID, reader string) error {
	chat, err := s.chatSvc.FindByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(reader) {
		return ErrNotParticipant
	}

	filter := bson.M{
		"chat_id":         chatID,
		"read":            false,
		"sender_username": bson.M{"$ne": reader},
	}
	update := bson.M{"$set": bson.M{"read": true}}

	if _, err := s.db.Collection(messagesCollection).UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("db error marking messages read in chat %s: %w", chatID.Hex(), err)
	}
	return nil
}
