package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/abhiram-s2002/racer-sub005/internal/api/middleware"
	"github.com/abhiram-s2002/racer-sub005/internal/services"
)

// RestChatHandler handles authenticated REST requests for chats and messages.
type RestChatHandler struct {
	chatService    services.IChatService
	messageService services.IMessageService
}

// NewRestChatHandler creates a new RestChatHandler.
func NewRestChatHandler(chatService services.IChatService, messageService services.IMessageService) *RestChatHandler {
	return &RestChatHandler{
		chatService:    chatService,
		messageService: messageService,
	}
}

// ListChats handles GET /v1/chat
func (h *RestChatHandler) ListChats(c *gin.Context) {
	username := c.GetString(middleware.ContextKeyUsername)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	chats, err := h.chatService.ListForUser(c.Request.Context(), username, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list chats"})
		return
	}

	c.JSON(http.StatusOK, chats)
}

// ListMessages handles GET /v1/chat/:id/message?limit=&before=RFC3339
func (h *RestChatHandler) ListMessages(c *gin.Context) {
	username := c.GetString(middleware.ContextKeyUsername)

	chatID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID format"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 100
	}

	var before *time.Time
	if beforeStr := c.Query("before"); beforeStr != "" {
		parsed, parseErr := time.Parse(time.RFC3339, beforeStr)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'before' timestamp; expected RFC3339"})
			return
		}
		before = &parsed
	}

	messages, err := h.messageService.ListMessages(c.Request.Context(), chatID, username, limit, before)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		case errors.Is(err, services.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this chat"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		}
		return
	}

	c.JSON(http.StatusOK, messages)
}
