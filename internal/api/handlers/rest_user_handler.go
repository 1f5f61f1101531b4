package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhiram-s2002/racer-sub005/internal/services"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService   services.IUserService
	ratingService services.IRatingService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService, ratingService services.IRatingService) *RestUserHandler {
	return &RestUserHandler{
		userService:   userService,
		ratingService: ratingService,
	}
}

// PublicUser represents the data returned for a user profile.
type PublicUser struct {
	Username      string  `json:"username"`
	Name          string  `json:"name"`
	DateJoined    string  `json:"date_joined"`
	RatingAverage float64 `json:"rating_average"`
	RatingCount   int     `json:"rating_count"`
}

// GetUserByUsername handles GET /v1/user/:username
func (h *RestUserHandler) GetUserByUsername(c *gin.Context) {
	username := c.Param("username")

	user, err := h.userService.FindByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		}
		return
	}
	if user.Suspended {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	summary, err := h.ratingService.GetSummary(c.Request.Context(), username)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}

	c.JSON(http.StatusOK, PublicUser{
		Username:      user.Username,
		Name:          user.Name,
		DateJoined:    user.CreatedAt.Format("2006-01-02"),
		RatingAverage: summary.Average,
		RatingCount:   summary.Count,
	})
}

// GetUserRatings handles GET /v1/user/:username/rating
func (h *RestUserHandler) GetUserRatings(c *gin.Context) {
	username := c.Param("username")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	summary, err := h.ratingService.GetSummary(c.Request.Context(), username)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ratings"})
		return
	}

	ratings, err := h.ratingService.ListForUser(c.Request.Context(), username, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ratings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"ratings": ratings,
	})
}
