package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/abhiram-s2002/racer-sub005/internal/models"
	"github.com/abhiram-s2002/racer-sub005/internal/services"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input services.SignUpInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	args := m.Called(ctx, login, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateNotificationPreferences(ctx context.Context, username string, prefs models.NotificationPreferences) error {
	args := m.Called(ctx, username, prefs)
	return args.Error(0)
}

func (m *MockUserService) SuspendUser(ctx context.Context, usernameToSuspend, adminUsername string) error {
	args := m.Called(ctx, usernameToSuspend, adminUsername)
	return args.Error(0)
}

func (m *MockUserService) UnsuspendUser(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockUserService) DeleteUserAndListings(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, seller, title, body string, tags []string, location *models.GeoJSON, countryCode string, askingPrice *models.AskingPrice) (*models.Listing, error) {
	args := m.Called(ctx, seller, title, body, tags, location, countryCode, askingPrice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID primitive.ObjectID, seller string, updates map[string]interface{}) (*models.Listing, error) {
	args := m.Called(ctx, listingID, seller, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) PublishListing(ctx context.Context, listingID primitive.ObjectID, seller string) error {
	args := m.Called(ctx, listingID, seller)
	return args.Error(0)
}

func (m *MockListingService) HideListing(ctx context.Context, listingID primitive.ObjectID, seller string) error {
	args := m.Called(ctx, listingID, seller)
	return args.Error(0)
}

func (m *MockListingService) UnhideListing(ctx context.Context, listingID primitive.ObjectID, seller string) error {
	args := m.Called(ctx, listingID, seller)
	return args.Error(0)
}

func (m *MockListingService) DeleteListing(ctx context.Context, listingID primitive.ObjectID, seller string) error {
	args := m.Called(ctx, listingID, seller)
	return args.Error(0)
}

func (m *MockListingService) SearchListings(ctx context.Context, query *string, countryCode *string, tags []string, nearLocation *models.GeoJSON, maxDistanceKM *int, limit int, cursor *string) ([]models.Listing, string, error) {
	args := m.Called(ctx, query, countryCode, tags, nearLocation, maxDistanceKM, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]models.Listing), args.String(1), args.Error(2)
}

func (m *MockListingService) AddImageToListing(ctx context.Context, listingID primitive.ObjectID, imageKey string) error {
	args := m.Called(ctx, listingID, imageKey)
	return args.Error(0)
}

func (m *MockListingService) FindListingsBySeller(ctx context.Context, seller string) ([]models.Listing, error) {
	args := m.Called(ctx, seller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

// MockPingService
type MockPingService struct {
	mock.Mock
}

func (m *MockPingService) SendPing(ctx context.Context, listingID primitive.ObjectID, sender, receiver, message string) (*models.Ping, error) {
	args := m.Called(ctx, listingID, sender, receiver, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ping), args.Error(1)
}

func (m *MockPingService) FindByID(ctx context.Context, pingID primitive.ObjectID) (*models.Ping, error) {
	args := m.Called(ctx, pingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ping), args.Error(1)
}

func (m *MockPingService) UpdateStatus(ctx context.Context, pingID primitive.ObjectID, status models.PingStatus) (*models.Ping, error) {
	args := m.Called(ctx, pingID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ping), args.Error(1)
}

func (m *MockPingService) ListForReceiver(ctx context.Context, receiver string, status *models.PingStatus, limit int) ([]models.Ping, error) {
	args := m.Called(ctx, receiver, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ping), args.Error(1)
}

func (m *MockPingService) ListForSender(ctx context.Context, sender string, status *models.PingStatus, limit int) ([]models.Ping, error) {
	args := m.Called(ctx, sender, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ping), args.Error(1)
}

// MockPingResponder implements services.IPingResponder
type MockPingResponder struct {
	mock.Mock
}

func (m *MockPingResponder) Respond(ctx context.Context, pingID primitive.ObjectID, actor string, accept bool) (*services.RespondOutcome, error) {
	args := m.Called(ctx, pingID, actor, accept)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RespondOutcome), args.Error(1)
}

func (m *MockPingResponder) ResolveChat(ctx context.Context, pingID primitive.ObjectID, actor string) (*models.Chat, error) {
	args := m.Called(ctx, pingID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockPingResponder) SetStatusListener(l services.StatusListener) {
	m.Called(l)
}

// MockChatService
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) GetOrCreateChat(ctx context.Context, listingID primitive.ObjectID, userA, userB string) (*models.Chat, bool, error) {
	args := m.Called(ctx, listingID, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Chat), args.Bool(1), args.Error(2)
}

func (m *MockChatService) FindChat(ctx context.Context, listingID primitive.ObjectID, userA, userB string) (*models.Chat, error) {
	args := m.Called(ctx, listingID, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatService) FindByID(ctx context.Context, chatID primitive.ObjectID) (*models.Chat, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatService) ListForUser(ctx context.Context, username string, limit int) ([]models.Chat, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Chat), args.Error(1)
}

func (m *MockChatService) TouchLastMessage(ctx context.Context, chatID primitive.ObjectID, text string, at time.Time) error {
	args := m.Called(ctx, chatID, text, at)
	return args.Error(0)
}

// MockMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) PostMessage(ctx context.Context, chatID primitive.ObjectID, sender, text string) (*models.Message, error) {
	args := m.Called(ctx, chatID, sender, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) PostSystemMessage(ctx context.Context, chatID primitive.ObjectID, text string) (*models.Message, error) {
	args := m.Called(ctx, chatID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) ListMessages(ctx context.Context, chatID primitive.ObjectID, requester string, limit int, before *time.Time) ([]models.Message, error) {
	args := m.Called(ctx, chatID, requester, limit, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) MarkRead(ctx context.Context, chatID primitive.ObjectID, reader string) error {
	args := m.Called(ctx, chatID, reader)
	return args.Error(0)
}

// MockRatingService
type MockRatingService struct {
	mock.Mock
}

func (m *MockRatingService) RateUser(ctx context.Context, listingID primitive.ObjectID, rater, rated string, stars int, comment string) (*models.Rating, error) {
	args := m.Called(ctx, listingID, rater, rated, stars, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rating), args.Error(1)
}

func (m *MockRatingService) GetSummary(ctx context.Context, username string) (*models.RatingSummary, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingSummary), args.Error(1)
}

func (m *MockRatingService) ListForUser(ctx context.Context, username string, limit int) ([]models.Rating, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Rating), args.Error(1)
}

// MockSubscriptionService
type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) Activate(ctx context.Context, username, plan string) (*models.Subscription, error) {
	args := m.Called(ctx, username, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) GetStatus(ctx context.Context, username string) (*models.SubscriptionStatus, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionStatus), args.Error(1)
}

func (m *MockSubscriptionService) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, username, listingID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, username, listingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// MockConfigService
type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}

func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Int(0)
}

func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.String(0)
}

func (m *MockConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Bool(0)
}

func (m *MockConfigService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	if fVal, ok := args.Get(0).(float64); ok {
		return fVal
	}
	return float64(args.Int(0))
}

func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Get(0).(time.Duration)
}

func (m *MockConfigService) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	args := m.Called(ctx, key, value, isPublic)
	return args.Error(0)
}

func (m *MockConfigService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	args := m.Called(ctx, apiType, endpoint, isAuthenticated)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIEndpointConfig), args.Error(1)
}

// MockLocationService
type MockLocationService struct {
	mock.Mock
}

func (m *MockLocationService) SearchLocations(ctx context.Context, query string, countryCode *string, limit int) ([]models.Location, error) {
	args := m.Called(ctx, query, countryCode, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Location), args.Error(1)
}
