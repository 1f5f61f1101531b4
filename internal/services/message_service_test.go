package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

func setupMessageServiceTest(t *testing.T) (*mongo.Database, IChatService, IMessageService, *models.Chat, func()) {
	dbName := fmt.Sprintf("testdb_message_service_%d", time.Now().UnixNano())
	db := setupTestDB(t, dbName)
	chatSvc := NewChatService(db)
	msgSvc := NewMessageService(db, chatSvc)

	chat, _, err := chatSvc.GetOrCreateChat(context.Background(), primitive.NewObjectID(), "alice", "bob")
	require.NoError(t, err)

	return db, chatSvc, msgSvc, chat, func() { dropTestDB(t, db) }
}

func TestMessageService_PostMessage(t *testing.T) {
	_, chatSvc, svc, chat, cleanup := setupMessageServiceTest(t)
	defer cleanup()

	msg, err := svc.PostMessage(context.Background(), chat.ID, "alice", "hi bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.SenderUsername)
	assert.False(t, msg.System)
	assert.False(t, msg.Read)

	// Posting also updates the chat's last-message preview.
	fetched, err := chatSvc.FindByID(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi bob", fetched.LastMessageText)
	require.NotNil(t, fetched.LastMessageAt)
}

func TestMessageService_PostMessageRejectsOutsiders(t *testing.T) {
	_, _, svc, chat, cleanup := setupMessageServiceTest(t)
	defer cleanup()

	_, err := svc.PostMessage(context.Background(), chat.ID, "mallory", "let me in")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.PostMessage(context.Background(), chat.ID, "alice", "")
	assert.Error(t, err)
}

func TestMessageService_PostMessageUnknownChat(t *testing.T) {
	_, _, svc, _, cleanup := setupMessageServiceTest(t)
	defer cleanup()

	_, err := svc.PostMessage(context.Background(), primitive.NewObjectID(), "alice", "hi")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestMessageService_PostSystemMessage(t *testing.T) {
	_, _, svc, chat, cleanup := setupMessageServiceTest(t)
	defer cleanup()

	msg, err := svc.PostSystemMessage(context.Background(), chat.ID, "bob accepted the ping. Say hello!")
	require.NoError(t, err)
	assert.True(t, msg.System)
	assert.Empty(t, msg.SenderUsername)
}

func TestMessageService_ListMessages(t *testing.T) {
	_, _, svc, chat, cleanup := setupMessageServiceTest(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		_, err := svc.PostMessage(context.Background(), chat.ID, "alice", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	msgs, err := svc.ListMessages(context.Background(), chat.ID, "bob", 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// Oldest first.
	assert.Equal(t, "msg 0", msgs[0].Text)
	assert.Equal(t, "msg 2", msgs[2].Text)

	_, err = svc.ListMessages(context.Background(), chat.ID, "mallory", 10, nil)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestMessageService_ListMessagesBefore(t *testing.T) {
	_, _, svc, chat, cleanup := setupMessageServiceTest(t)
	defer cleanup()

	first, err := svc.PostMessage(context.Background(), chat.ID, "alice", "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := svc.PostMessage(context.Background(), chat.ID, "bob", "second")
	require.NoError(t, err)

	msgs, err := svc.ListMessages(context.Background(), chat.ID, "alice", 10, &second.CreatedAt)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, first.ID, msgs[0].ID)
}

func TestMessageService_MarkRead(t *testing.T) {
	_, _, svc, chat, cleanup := setupMessageServiceTest(t)
	defer cleanup()

	_, err := svc.PostMessage(context.Background(), chat.ID, "alice", "from alice")
	require.NoError(t, err)
	_, err = svc.PostMessage(context.Background(), chat.ID, "bob", "from bob")
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(context.Background(), chat.ID, "bob"))

	msgs, err := svc.ListMessages(context.Background(), chat.ID, "bob", 10, nil)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.SenderUsername == "alice" {
			assert.True(t, m.Read, "messages from the other side should be read")
		} else {
			assert.False(t, m.Read, "own messages stay unread until the counterpart reads them")
		}
	}

	err = svc.MarkRead(context.Background(), chat.ID, "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)
}
