package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhiram-s2002/racer-sub005/internal/api/handlers"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

func TestRestListingHandler_SearchListings_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewRestListingHandler(mockListingSvc)

	r := gin.New()
	r.GET("/v1/listing/search", handler.SearchListings)

	results := []models.Listing{
		{ID: primitive.NewObjectID(), SellerUsername: "alice", Title: "Red bike"},
	}
	query := "bike"
	mockListingSvc.On("SearchListings", mock.Anything, &query, (*string)(nil), []string{"bikes", "-broken"},
		(*models.GeoJSON)(nil), (*int)(nil), 20, (*string)(nil)).Return(results, "cursor123", nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/search?q=bike&tags=bikes,-broken", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody struct {
		Data       []models.Listing `json:"data"`
		NextCursor string           `json:"next_cursor"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Len(t, respBody.Data, 1)
	assert.Equal(t, "Red bike", respBody.Data[0].Title)
	assert.Equal(t, "cursor123", respBody.NextCursor)
	mockListingSvc.AssertExpectations(t)
}

func TestRestListingHandler_SearchListings_CountryAndGeo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewRestListingHandler(mockListingSvc)

	r := gin.New()
	r.GET("/v1/listing/search/:country_code", handler.SearchListings)

	nz := "NZ"
	dist := 25
	near := &models.GeoJSON{Type: "Point", Coordinates: []float64{174.76, -36.85}}
	mockListingSvc.On("SearchListings", mock.Anything, (*string)(nil), &nz, []string(nil),
		near, &dist, 20, (*string)(nil)).Return([]models.Listing{}, "", nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/search/nz?lat=-36.85&lon=174.76&dist_km=25", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockListingSvc.AssertExpectations(t)
}

func TestRestListingHandler_GetListingByID_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewRestListingHandler(mockListingSvc)

	r := gin.New()
	r.GET("/v1/listing/:id", handler.GetListingByID)

	listing := &models.Listing{ID: primitive.NewObjectID(), SellerUsername: "alice", Title: "Lamp"}
	mockListingSvc.On("FindListingByID", mock.Anything, listing.ID).Return(listing, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/"+listing.ID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody models.Listing
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Equal(t, "Lamp", respBody.Title)
	mockListingSvc.AssertExpectations(t)
}

func TestRestListingHandler_GetListingByID_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewRestListingHandler(mockListingSvc)

	r := gin.New()
	r.GET("/v1/listing/:id", handler.GetListingByID)

	missingID := primitive.NewObjectID()
	mockListingSvc.On("FindListingByID", mock.Anything, missingID).Return(nil, mongo.ErrNoDocuments)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/"+missingID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestListingHandler_GetListingByID_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewRestListingHandler(mockListingSvc)

	r := gin.New()
	r.GET("/v1/listing/:id", handler.GetListingByID)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/not-an-id", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockListingSvc.AssertNotCalled(t, "FindListingByID")
}

func TestRestListingHandler_GetUserListings_FiltersDraftsAndHidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewRestListingHandler(mockListingSvc)

	r := gin.New()
	r.GET("/v1/user/:username/listing", handler.GetUserListings)

	all := []models.Listing{
		{ID: primitive.NewObjectID(), SellerUsername: "alice", Title: "Published"},
		{ID: primitive.NewObjectID(), SellerUsername: "alice", Title: "Draft", IsDraft: true},
		{ID: primitive.NewObjectID(), SellerUsername: "alice", Title: "Hidden", Hidden: true},
	}
	mockListingSvc.On("FindListingsBySeller", mock.Anything, "alice").Return(all, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/user/alice/listing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody []models.Listing
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Len(t, respBody, 1)
	assert.Equal(t, "Published", respBody[0].Title)
	mockListingSvc.AssertExpectations(t)
}
