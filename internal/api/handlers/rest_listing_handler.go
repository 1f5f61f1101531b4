package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhiram-s2002/racer-sub005/internal/models"
	"github.com/abhiram-s2002/racer-sub005/internal/services"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(listingService services.IListingService) *RestListingHandler {
	return &RestListingHandler{listingService: listingService}
}

// SearchListings handles GET /v1/listing/search and GET /v1/listing/search/:country_code
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	query := c.Query("q")
	tagsStr := c.Query("tags")
	limitStr := c.DefaultQuery("limit", "20")
	cursor := c.Query("cursor")
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	distStr := c.Query("dist_km")

	countryCodeParam := c.Param("country_code")
	var countryCode *string
	if countryCodeParam != "" {
		cc := strings.ToUpper(countryCodeParam)
		countryCode = &cc
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	// Comma-separated tags; "-tag" excludes.
	var tags []string
	if tagsStr != "" {
		for _, tag := range strings.Split(tagsStr, ",") {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
	}

	var nearLocation *models.GeoJSON
	var maxDistanceKM *int
	if latStr != "" && lonStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		if latErr == nil && lonErr == nil {
			nearLocation = &models.GeoJSON{Type: "Point", Coordinates: []float64{lon, lat}}
			if distStr != "" {
				distKmVal, distErr := strconv.Atoi(distStr)
				if distErr == nil && distKmVal > 0 {
					maxDistanceKM = &distKmVal
				}
			}
		}
	}

	var queryPtr *string
	if query != "" {
		queryPtr = &query
	}
	var cursorPtr *string
	if cursor != "" {
		cursorPtr = &cursor
	}

	listings, nextCursor, err := h.listingService.SearchListings(
		c.Request.Context(),
		queryPtr,
		countryCode,
		tags,
		nearLocation,
		maxDistanceKM,
		limit,
		cursorPtr,
	)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        listings,
		"next_cursor": nextCursor,
	})
}

// GetListingByID handles GET /v1/listing/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		}
		return
	}

	c.JSON(http.StatusOK, listing)
}

// GetUserListings handles GET /v1/user/:username/listing
func (h *RestListingHandler) GetUserListings(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing username"})
		return
	}

	listings, err := h.listingService.FindListingsBySeller(c.Request.Context(), username)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listings"})
		return
	}

	// Drafts are for the owner's eyes only; this endpoint is public.
	published := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if !l.IsDraft && !l.Hidden {
			published = append(published, l)
		}
	}
	c.JSON(http.StatusOK, published)
}
