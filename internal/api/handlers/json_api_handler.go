package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhiram-s2002/racer-sub005/internal/auth"
	"github.com/abhiram-s2002/racer-sub005/internal/config"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
	"github.com/abhiram-s2002/racer-sub005/internal/services"
	"github.com/abhiram-s2002/racer-sub005/internal/storage"
	"github.com/abhiram-s2002/racer-sub005/internal/tasks"
)

// Context key type for AuthResult
type authContextKey string

const authResultKey authContextKey = "authResult"

// Helper to get AuthResult from context
func getAuthFromContext(ctx context.Context) (*AuthResult, bool) {
	val, ok := ctx.Value(authResultKey).(*AuthResult)
	return val, ok
}

// IAsynqClient defines the interface for the Asynq client methods used by the
// handler. This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	cfg                 *config.Config
	db                  *mongo.Database
	rdb                 *redis.Client
	taskClient          IAsynqClient
	userService         services.IUserService
	listingService      services.IListingService
	storageService      storage.IS3Storage
	pingService         services.IPingService
	pingResponder       services.IPingResponder
	chatService         services.IChatService
	messageService      services.IMessageService
	ratingService       services.IRatingService
	subscriptionService services.ISubscriptionService
	methods             map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
func NewJsonApiHandler(
	cfg *config.Config,
	db *mongo.Database,
	rdb *redis.Client,
	taskClient IAsynqClient,
	userService services.IUserService,
	listingService services.IListingService,
	storageService storage.IS3Storage,
	pingService services.IPingService,
	pingResponder services.IPingResponder,
	chatService services.IChatService,
	messageService services.IMessageService,
	ratingService services.IRatingService,
	subscriptionService services.ISubscriptionService,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:                 cfg,
		db:                  db,
		rdb:                 rdb,
		taskClient:          taskClient,
		userService:         userService,
		listingService:      listingService,
		storageService:      storageService,
		pingService:         pingService,
		pingResponder:       pingResponder,
		chatService:         chatService,
		messageService:      messageService,
		ratingService:       ratingService,
		subscriptionService: subscriptionService,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                          h.ping,
		"signUp":                        h.signUp,
		"logIn":                         h.logIn,
		"refreshToken":                  h.refreshToken,
		"sendPing":                      h.sendPing,
		"respondToPing":                 h.respondToPing,
		"postMessage":                   h.postMessage,
		"markMessagesRead":              h.markMessagesRead,
		"rateUser":                      h.rateUser,
		"createListing":                 h.createListing,
		"updateListing":                 h.updateListing,
		"publishListing":                h.publishListing,
		"hideListing":                   h.hideListing,
		"unhideListing":                 h.unhideListing,
		"deleteListing":                 h.deleteListing,
		"getUploadURL":                  h.getUploadURL,
		"confirmImageUpload":            h.confirmImageUpload,
		"activateSubscription":          h.activateSubscription,
		"updateNotificationPreferences": h.updateNotificationPreferences,
		"suspendUser":                   h.suspendUser,
		"unSuspendUser":                 h.unSuspendUser,
		"requestAccountDeletion":        h.requestAccountDeletion,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	authErr := h.checkAuthForMethod(c, req.Method)
	if authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	var result interface{}
	var apiErr *ApiError

	if handlerFunc, ok := h.methods[req.Method]; ok {
		result, apiErr = handlerFunc(c, req.Arguments)
	} else {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

// AuthResult holds optional authentication details. An empty Username means
// the request is from a guest.
type AuthResult struct {
	UserID   string
	Username string
	IsAdmin  bool
}

// checkAuthForMethod checks if auth is needed and validates/extracts details
// if so. It stores the AuthResult in c.Request.Context().
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	needsAuth := h.methodRequiresAuth(method)
	needsAdmin := h.methodRequiresAdmin(method)
	var authRes *AuthResult

	if !needsAuth && !needsAdmin {
		// If method is public, check if an optional Auth header is present anyway
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
			if err == nil {
				authRes = &AuthResult{UserID: claims.UserID, Username: claims.Username, IsAdmin: claims.IsAdmin}
			} else {
				// Invalid optional token: log it but proceed as guest
				log.Printf("DEBUG: Invalid optional auth token provided for method %s: %v", method, err)
				authRes = &AuthResult{}
			}
		} else {
			authRes = &AuthResult{}
		}
		ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
		c.Request = c.Request.WithContext(ctx)
		return nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return NewApiError("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return NewApiError("Authorization header format must be Bearer {token}")
	}
	claims, err := auth.ValidateJWT(parts[1], h.cfg.JwtSecret)
	if err != nil {
		log.Printf("DEBUG: Token validation failed for method %s: %v", method, err)
		return NewApiError(fmt.Sprintf("Invalid or expired token: %v", err))
	}

	if needsAdmin && !claims.IsAdmin {
		log.Printf("DEBUG: Admin privileges required but not present for method %s", method)
		return NewApiError("Administrator privileges required")
	}

	authRes = &AuthResult{UserID: claims.UserID, Username: claims.Username, IsAdmin: claims.IsAdmin}
	ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
	c.Request = c.Request.WithContext(ctx)
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	case "refreshToken",
		"sendPing",
		"respondToPing",
		"postMessage",
		"markMessagesRead",
		"rateUser",
		"createListing",
		"updateListing",
		"publishListing",
		"hideListing",
		"unhideListing",
		"deleteListing",
		"getUploadURL",
		"confirmImageUpload",
		"activateSubscription",
		"updateNotificationPreferences",
		"requestAccountDeletion",
		"suspendUser",
		"unSuspendUser":
		return true

	case "ping",
		"signUp",
		"logIn":
		return false

	default:
		log.Printf("Warning: methodRequiresAuth check for unlisted method '%s', defaulting to false (public)", method)
		return false
	}
}

// methodRequiresAdmin checks if a given API method requires admin privileges.
func (h *JsonApiHandler) methodRequiresAdmin(method string) bool {
	switch method {
	case "suspendUser",
		"unSuspendUser":
		return true
	default:
		return false
	}
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: false, Error: message})
}

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}

	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}

	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}

	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

func (h *JsonApiHandler) enqueueEmail(ctx context.Context, to, templateID string, data map[string]interface{}) {
	task := tasks.NewEmailTask(to, templateID, data)
	if _, err := h.taskClient.EnqueueContext(ctx, task); err != nil {
		log.Printf("ERROR enqueuing %s email to %s: %v", templateID, to, err)
	}
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

// AuthResponse defines the structure for authentication responses.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	ID       string `json:"id"`
}

func (h *JsonApiHandler) signUp(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var input services.SignUpInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &input); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	user, err := h.userService.Register(ctx, input)
	if err != nil {
		var fe services.FieldErrors
		switch {
		case errors.As(err, &fe):
			return gin.H{"field_errors": fe}, NewApiError("validation_failed")
		case errors.Is(err, services.ErrUsernameExists):
			return nil, NewApiError("username_exists")
		case errors.Is(err, services.ErrEmailExists):
			return nil, NewApiError("email_exists")
		default:
			log.Printf("Error registering user %s: %v", input.Username, err)
			return nil, NewApiError("Registration failed")
		}
	}

	h.enqueueEmail(ctx, user.Email, "welcome", map[string]interface{}{
		"name":     user.Name,
		"username": user.Username,
		"app_name": h.cfg.AppName,
	})

	token, err := auth.GenerateJWT(user.ID.Hex(), user.Username, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for new user %s: %v", user.Username, err)
		return nil, NewApiError("Failed to generate session token")
	}

	return AuthResponse{Token: token, Username: user.Username, ID: user.ID.Hex()}, nil
}

// LogInArgs defines the arguments for the logIn method.
type LogInArgs struct {
	Login    string `json:"login"` // username or email
	Password string `json:"password"`
}

func (h *JsonApiHandler) logIn(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs LogInArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	user, err := h.userService.Authenticate(ctx, reqArgs.Login, reqArgs.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserSuspended) {
			return nil, NewApiError("account_suspended")
		}
		// Invalid credentials and unknown users get the same answer.
		return false, nil
	}

	token, err := auth.GenerateJWT(user.ID.Hex(), user.Username, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for user %s: %v", user.Username, err)
		return nil, NewApiError("Failed to generate session token")
	}

	return AuthResponse{Token: token, Username: user.Username, ID: user.ID.Hex()}, nil
}

func (h *JsonApiHandler) refreshToken(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required for refreshToken")
	}

	newToken, err := auth.GenerateJWT(authInfo.UserID, authInfo.Username, authInfo.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate refreshed JWT for user %s: %v", authInfo.Username, err)
		return nil, NewApiError("Failed to refresh session token")
	}
	return newToken, nil
}

// SendPingArgs defines the arguments for the sendPing method.
type SendPingArgs struct {
	ListingID string `json:"listing_id"`
	Message   string `json:"message"`
}

func (h *JsonApiHandler) sendPing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs SendPingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	listingID, err := primitive.ObjectIDFromHex(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	ctx := c.Request.Context()
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewApiError("Listing not found")
		}
		log.Printf("Error finding listing %s for ping: %v", reqArgs.ListingID, err)
		return nil, NewApiError("Failed to send ping")
	}
	if listing.IsDraft || listing.Hidden {
		return nil, NewApiError("Listing not found")
	}

	newPing, err := h.pingService.SendPing(ctx, listingID, authInfo.Username, listing.SellerUsername, reqArgs.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfPing):
			return nil, NewApiError("cannot_ping_own_listing")
		case errors.Is(err, services.ErrPingExists):
			return nil, NewApiError("ping_already_open")
		default:
			log.Printf("Error sending ping from %s for listing %s: %v", authInfo.Username, reqArgs.ListingID, err)
			return nil, NewApiError(err.Error())
		}
	}

	// Notify the seller, respecting their preferences.
	receiver, err := h.userService.FindByUsername(ctx, listing.SellerUsername)
	if err == nil && receiver.EmailPrefs().PingReceived {
		h.enqueueEmail(ctx, receiver.Email, "ping_received", map[string]interface{}{
			"sender":        authInfo.Username,
			"listing_title": listing.Title,
			"message":       newPing.Message,
		})
	}

	return newPing, nil
}

// RespondToPingArgs defines the arguments for the respondToPing method.
type RespondToPingArgs struct {
	PingID string `json:"ping_id"`
	Accept bool   `json:"accept"`
}

func (h *JsonApiHandler) respondToPing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs RespondToPingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	pingID, err := primitive.ObjectIDFromHex(reqArgs.PingID)
	if err != nil {
		return nil, NewApiError("Invalid ping_id format")
	}

	ctx := c.Request.Context()
	outcome, err := h.pingResponder.Respond(ctx, pingID, authInfo.Username, reqArgs.Accept)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, NewApiError("Ping not found")
		case errors.Is(err, services.ErrNotReceiver):
			return nil, NewApiError("only_receiver_can_respond")
		case errors.Is(err, services.ErrPingNotPending):
			return nil, NewApiError("ping_already_decided")
		default:
			log.Printf("Error responding to ping %s by %s: %v", reqArgs.PingID, authInfo.Username, err)
			return nil, NewApiError("Failed to respond to ping")
		}
	}

	resp := gin.H{
		"ping":     outcome.Ping,
		"degraded": outcome.Degraded(),
	}
	if outcome.Chat != nil {
		resp["chat"] = outcome.Chat
	}
	return resp, nil
}

// PostMessageArgs defines the arguments for the postMessage method.
type PostMessageArgs struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (h *JsonApiHandler) postMessage(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs PostMessageArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	chatID, err := primitive.ObjectIDFromHex(reqArgs.ChatID)
	if err != nil {
		return nil, NewApiError("Invalid chat_id format")
	}

	ctx := c.Request.Context()
	msg, err := h.messageService.PostMessage(ctx, chatID, authInfo.Username, reqArgs.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			return nil, NewApiError("Chat not found")
		case errors.Is(err, services.ErrNotParticipant):
			return nil, NewApiError("not_a_participant")
		default:
			log.Printf("Error posting message to chat %s by %s: %v", reqArgs.ChatID, authInfo.Username, err)
			return nil, NewApiError(err.Error())
		}
	}

	// Best-effort notification to the other participant.
	if chat, chatErr := h.chatService.FindByID(ctx, chatID); chatErr == nil {
		other := chat.OtherParticipant(authInfo.Username)
		if recipient, userErr := h.userService.FindByUsername(ctx, other); userErr == nil && recipient.EmailPrefs().NewMessage {
			h.enqueueEmail(ctx, recipient.Email, "new_message", map[string]interface{}{
				"sender":  authInfo.Username,
				"message": msg.Text,
			})
		}
	}

	return msg, nil
}

func (h *JsonApiHandler) markMessagesRead(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var chatIDHex string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &chatIDHex); apiErr != nil {
		return nil, apiErr
	}
	chatID, err := primitive.ObjectIDFromHex(chatIDHex)
	if err != nil {
		return nil, NewApiError("Invalid chat_id format")
	}

	if err := h.messageService.MarkRead(c.Request.Context(), chatID, authInfo.Username); err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			return nil, NewApiError("Chat not found")
		case errors.Is(err, services.ErrNotParticipant):
			return nil, NewApiError("not_a_participant")
		default:
			log.Printf("Error marking chat %s read by %s: %v", chatIDHex, authInfo.Username, err)
			return nil, NewApiError("Failed to mark messages read")
		}
	}
	return nil, nil
}

// RateUserArgs defines the arguments for the rateUser method.
type RateUserArgs struct {
	ListingID     string `json:"listing_id"`
	RatedUsername string `json:"rated_username"`
	Stars         int    `json:"stars"`
	Comment       string `json:"comment"`
}

func (h *JsonApiHandler) rateUser(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs RateUserArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	listingID, err := primitive.ObjectIDFromHex(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	rating, err := h.ratingService.RateUser(c.Request.Context(), listingID, authInfo.Username, reqArgs.RatedUsername, reqArgs.Stars, reqArgs.Comment)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfRating):
			return nil, NewApiError("cannot_rate_yourself")
		case errors.Is(err, services.ErrAlreadyRated):
			return nil, NewApiError("already_rated")
		default:
			log.Printf("Error rating %s by %s: %v", reqArgs.RatedUsername, authInfo.Username, err)
			return nil, NewApiError(err.Error())
		}
	}
	return rating, nil
}

// CreateListingArgs defines the arguments for the createListing method.
type CreateListingArgs struct {
	Title       string              `json:"title"`
	Body        string              `json:"body"`
	Tags        []string            `json:"tags"`
	Location    *models.GeoJSON     `json:"location"`
	CountryCode string              `json:"country_code"`
	AskingPrice *models.AskingPrice `json:"asking_price"`
}

func (h *JsonApiHandler) createListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required to create listing")
	}

	var reqArgs CreateListingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if strings.TrimSpace(reqArgs.Title) == "" {
		return nil, NewApiError("Title cannot be empty")
	}

	ctx := c.Request.Context()
	newListing, err := h.listingService.CreateListing(ctx,
		authInfo.Username,
		reqArgs.Title,
		reqArgs.Body,
		reqArgs.Tags,
		reqArgs.Location,
		reqArgs.CountryCode,
		reqArgs.AskingPrice,
	)
	if err != nil {
		log.Printf("Error creating listing for user %s: %v", authInfo.Username, err)
		return nil, NewApiError("Failed to create listing")
	}

	log.Printf("Created new listing %s for user %s", newListing.ID.Hex(), authInfo.Username)
	return newListing, nil
}

// UpdateListingArgs expects the listing ID and a map of fields to update.
type UpdateListingArgs struct {
	ListingID string                 `json:"listing_id"`
	Updates   map[string]interface{} `json:"updates"`
}

func (h *JsonApiHandler) updateListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required to update listing")
	}

	var reqArgs UpdateListingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	listingID, err := primitive.ObjectIDFromHex(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}
	if len(reqArgs.Updates) == 0 {
		return nil, NewApiError("No updates provided")
	}

	updatedListing, err := h.listingService.UpdateListing(c.Request.Context(), listingID, authInfo.Username, reqArgs.Updates)
	if err != nil {
		log.Printf("Error updating listing %s for user %s: %v", reqArgs.ListingID, authInfo.Username, err)
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "not owned") {
			return nil, NewApiError("Listing not found or access denied")
		} else if strings.Contains(err.Error(), "cannot be updated") {
			return nil, NewApiError(err.Error())
		}
		return nil, NewApiError("Failed to update listing")
	}
	return updatedListing, nil
}

// listingStatusCall applies a status flip (publish/hide/unhide/delete) that
// takes just the listing ID as argument.
func (h *JsonApiHandler) listingStatusCall(c *gin.Context, args json.RawMessage, op func(ctx context.Context, listingID primitive.ObjectID, seller string) error) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var listingIDHex string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &listingIDHex); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := primitive.ObjectIDFromHex(listingIDHex)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format in argument")
	}

	if err := op(c.Request.Context(), listingID, authInfo.Username); err != nil {
		log.Printf("Error changing listing %s status for user %s: %v", listingIDHex, authInfo.Username, err)
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "does not belong") {
			return nil, NewApiError("Listing not found or access denied")
		}
		return nil, NewApiError(err.Error())
	}
	return nil, nil
}

func (h *JsonApiHandler) publishListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.listingStatusCall(c, args, h.listingService.PublishListing)
}

func (h *JsonApiHandler) hideListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.listingStatusCall(c, args, h.listingService.HideListing)
}

func (h *JsonApiHandler) unhideListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.listingStatusCall(c, args, h.listingService.UnhideListing)
}

func (h *JsonApiHandler) deleteListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.listingStatusCall(c, args, h.listingService.DeleteListing)
}

// GetUploadURLArgs defines the arguments for the getUploadURL method.
type GetUploadURLArgs struct {
	ListingID   string `json:"listing_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (h *JsonApiHandler) getUploadURL(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs GetUploadURLArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if reqArgs.ListingID == "" || reqArgs.Filename == "" || reqArgs.ContentType == "" {
		return nil, NewApiError("Missing required arguments (listing_id, filename, content_type)")
	}

	listingID, err := primitive.ObjectIDFromHex(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	ctx := c.Request.Context()
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil || listing.SellerUsername != authInfo.Username {
		return nil, NewApiError("Listing not found or access denied")
	}

	presignedURL, objectKey, err := h.storageService.GeneratePresignedPutURL(ctx,
		authInfo.Username,
		reqArgs.ListingID,
		reqArgs.Filename,
		reqArgs.ContentType,
	)
	if err != nil {
		log.Printf("Error generating presigned URL for user %s, listing %s: %v", authInfo.Username, reqArgs.ListingID, err)
		return nil, NewApiError("Failed to generate upload URL")
	}

	return gin.H{
		"upload_url": presignedURL,
		"object_key": objectKey,
	}, nil
}

// ConfirmImageUploadArgs defines the arguments for the confirmImageUpload method.
type ConfirmImageUploadArgs struct {
	ListingID string `json:"listing_id"`
	ObjectKey string `json:"object_key"` // The key returned by getUploadURL
}

func (h *JsonApiHandler) confirmImageUpload(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs ConfirmImageUploadArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if reqArgs.ListingID == "" || reqArgs.ObjectKey == "" {
		return nil, NewApiError("Missing required arguments (listing_id, object_key)")
	}

	listingID, err := primitive.ObjectIDFromHex(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	ctx := c.Request.Context()
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil || listing.SellerUsername != authInfo.Username {
		return nil, NewApiError("Listing not found or access denied")
	}

	payloadBytes, _ := json.Marshal(tasks.ImageTaskPayload{
		S3Key:     reqArgs.ObjectKey,
		ListingID: reqArgs.ListingID,
	})
	task := asynq.NewTask(tasks.TypeImageProcess, payloadBytes, asynq.Queue("images"))

	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("ERROR enqueuing image processing task for key %s, listing %s: %v", reqArgs.ObjectKey, reqArgs.ListingID, err)
		return nil, NewApiError("Failed to schedule image processing")
	}

	return gin.H{
		"message": "Image upload confirmed, processing scheduled.",
		"task_id": taskInfo.ID,
	}, nil
}

func (h *JsonApiHandler) activateSubscription(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var plan string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &plan); apiErr != nil {
		return nil, apiErr
	}

	sub, err := h.subscriptionService.Activate(c.Request.Context(), authInfo.Username, plan)
	if err != nil {
		log.Printf("Error activating subscription for %s: %v", authInfo.Username, err)
		return nil, NewApiError(err.Error())
	}
	return sub, nil
}

func (h *JsonApiHandler) updateNotificationPreferences(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	var prefs models.NotificationPreferences
	if apiErr := h.parseRequiredSingleArgFromArray(args, &prefs); apiErr != nil {
		return nil, apiErr
	}

	if err := h.userService.UpdateNotificationPreferences(c.Request.Context(), authInfo.Username, prefs); err != nil {
		log.Printf("Error updating notification preferences for %s: %v", authInfo.Username, err)
		return nil, NewApiError("Failed to update notification preferences")
	}
	return nil, nil
}

func (h *JsonApiHandler) suspendUser(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || !authInfo.IsAdmin {
		return nil, NewApiError("Administrator privileges required")
	}

	var username string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &username); apiErr != nil {
		return nil, apiErr
	}

	if err := h.userService.SuspendUser(c.Request.Context(), username, authInfo.Username); err != nil {
		log.Printf("Error suspending user %s by %s: %v", username, authInfo.Username, err)
		return nil, NewApiError(err.Error())
	}
	return nil, nil
}

func (h *JsonApiHandler) unSuspendUser(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || !authInfo.IsAdmin {
		return nil, NewApiError("Administrator privileges required")
	}

	var username string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &username); apiErr != nil {
		return nil, apiErr
	}

	if err := h.userService.UnsuspendUser(c.Request.Context(), username); err != nil {
		log.Printf("Error unsuspending user %s by %s: %v", username, authInfo.Username, err)
		return nil, NewApiError(err.Error())
	}
	return nil, nil
}

func (h *JsonApiHandler) requestAccountDeletion(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Username == "" {
		return nil, NewApiError("Authentication required")
	}

	if err := h.userService.DeleteUserAndListings(c.Request.Context(), authInfo.Username); err != nil {
		log.Printf("Error deleting account %s: %v", authInfo.Username, err)
		return nil, NewApiError("Failed to delete account")
	}
	return gin.H{"message": "Account deleted successfully."}, nil
}
