package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abhiram-s2002/racer-sub005/internal/models"
	"github.com/abhiram-s2002/racer-sub005/internal/services"
)

// RestLocationHandler handles requests for location REST endpoints.
type RestLocationHandler struct {
	locationService services.ILocationService
}

// NewRestLocationHandler creates a new RestLocationHandler.
func NewRestLocationHandler(locationService services.ILocationService) *RestLocationHandler {
	return &RestLocationHandler{locationService: locationService}
}

// SearchLocations handles GET /v1/location/search and GET /v1/location/:country_code/search
func (h *RestLocationHandler) SearchLocations(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing search query parameter 'q'"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	countryCodeParam := c.Param("country_code")
	var countryCode *string
	if countryCodeParam != "" {
		cc := strings.ToUpper(countryCodeParam)
		countryCode = &cc
	}

	locations, err := h.locationService.SearchLocations(c.Request.Context(), query, countryCode, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search locations"})
		return
	}

	results := make([]models.LocationAPIResponse, 0, len(locations))
	for _, loc := range locations {
		apiResponse := models.LocationAPIResponse{
			ID:          fmt.Sprintf("%d", loc.ID),
			Name:        loc.Name,
			Context:     models.FormatContext(loc.Context),
			CountryCode: loc.CountryCode,
		}
		if loc.Location != nil && loc.Location.Coordinates != nil {
			apiResponse.Coordinates = loc.Location.Coordinates
		}
		results = append(results, apiResponse)
	}

	c.JSON(http.StatusOK, results)
}
