package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhiram-s2002/racer-sub005/internal/api/middleware"
	"github.com/abhiram-s2002/racer-sub005/internal/services"
)

// RestSubscriptionHandler handles authenticated REST requests for subscriptions.
type RestSubscriptionHandler struct {
	subscriptionService services.ISubscriptionService
}

// NewRestSubscriptionHandler creates a new RestSubscriptionHandler.
func NewRestSubscriptionHandler(subscriptionService services.ISubscriptionService) *RestSubscriptionHandler {
	return &RestSubscriptionHandler{subscriptionService: subscriptionService}
}

// GetSubscription handles GET /v1/subscription
func (h *RestSubscriptionHandler) GetSubscription(c *gin.Context) {
	username := c.GetString(middleware.ContextKeyUsername)

	status, err := h.subscriptionService.GetStatus(c.Request.Context(), username)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve subscription status"})
		return
	}

	c.JSON(http.StatusOK, status)
}
