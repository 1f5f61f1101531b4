package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhiram-s2002/racer-sub005/internal/api/middleware"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
	"github.com/abhiram-s2002/racer-sub005/internal/services"
)

// RestPingHandler handles authenticated REST requests for pings.
type RestPingHandler struct {
	pingService   services.IPingService
	pingResponder services.IPingResponder
}

// NewRestPingHandler creates a new RestPingHandler.
func NewRestPingHandler(pingService services.IPingService, pingResponder services.IPingResponder) *RestPingHandler {
	return &RestPingHandler{
		pingService:   pingService,
		pingResponder: pingResponder,
	}
}

// ListPings handles GET /v1/ping?role=received|sent&status=pending|accepted|rejected
func (h *RestPingHandler) ListPings(c *gin.Context) {
	username := c.GetString(middleware.ContextKeyUsername)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	var status *models.PingStatus
	if statusStr := c.Query("status"); statusStr != "" {
		st := models.PingStatus(statusStr)
		if st != models.PingStatusPending && !st.IsDecision() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}
		status = &st
	}

	var pings []models.Ping
	switch c.DefaultQuery("role", "received") {
	case "received":
		pings, err = h.pingService.ListForReceiver(c.Request.Context(), username, status, limit)
	case "sent":
		pings, err = h.pingService.ListForSender(c.Request.Context(), username, status, limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role; expected 'received' or 'sent'"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pings"})
		return
	}

	c.JSON(http.StatusOK, pings)
}

// GetPingChat handles GET /v1/ping/:id/chat, resolving the chat of an
// accepted ping for either party.
func (h *RestPingHandler) GetPingChat(c *gin.Context) {
	username := c.GetString(middleware.ContextKeyUsername)

	pingID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ping ID format"})
		return
	}

	chat, err := h.pingResponder.ResolveChat(c.Request.Context(), pingID, username)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Ping not found"})
		case errors.Is(err, services.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a party to this ping"})
		case errors.Is(err, services.ErrPingNotAccepted):
			c.JSON(http.StatusConflict, gin.H{"error": "Ping has not been accepted"})
		case errors.Is(err, services.ErrChatNotFound):
			// Accepted but the bootstrap never completed.
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found for accepted ping"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve chat"})
		}
		return
	}

	c.JSON(http.StatusOK, chat)
}
