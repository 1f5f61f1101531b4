package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abhiram-s2002/racer-sub005/internal/config"
	"github.com/abhiram-s2002/racer-sub005/internal/db"
)

var testMongoURI string

func init() {
	// Get current file path
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		godotenv.Load()
	}

	testMongoURI = os.Getenv("MONGO_URI_TEST")
	if testMongoURI == "" {
		panic("MONGO_URI_TEST environment variable is required for tests")
	}
}

func setupTestDB(t *testing.T, dbName string) *mongo.Database {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	return client.Database(dbName)
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:              "Racer",
		PasswordRegexp:       "^.{8,}$",
		PingMaxMessageLen:    500,
		PingMaxOpenPerPair:   1,
		SubscriptionPlanDays: 30,
		AcceptedChatMessage:  "{{.receiver}} accepted the ping. Say hello!",
	}
}

// ensureTestIndexes creates the unique indexes tests rely on.
func ensureTestIndexes(t *testing.T, database *mongo.Database) {
	t.Helper()
	require.NoError(t, db.EnsureIndexes(context.Background(), database))
}

func dropTestDB(t *testing.T, db *mongo.Database) {
	client := db.Client()
	if err := db.Drop(context.Background()); err != nil {
		t.Logf("Failed to drop database %s: %v", db.Name(), err)
	}
	if err := client.Disconnect(context.Background()); err != nil {
		t.Logf("Failed to disconnect MongoDB client: %v", err)
	}
}

// --- Test Setup Helper ---
func setupUserServiceTest(t *testing.T) (*mongo.Database, IUserService, func()) {
	dbName := fmt.Sprintf("testdb_user_service_%d", time.Now().UnixNano())
	db := setupTestDB(t, dbName)
	svc := NewUserService(db, testConfig())
	return db, svc, func() { dropTestDB(t, db) }
}

func validSignUp(username string) SignUpInput {
	return SignUpInput{
		Username: username,
		Name:     "Test User",
		Email:    username + "@example.com",
		Password: "password123",
	}
}

// --- Tests ---
func TestUserService_RegisterAndFind(t *testing.T) {
	_, svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	user, err := svc.Register(context.Background(), validSignUp("alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.Activated)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "password123", user.PasswordHash)

	fetched, err := svc.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, fetched.ID)

	fetchedByEmail, err := svc.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, fetchedByEmail.ID)

	_, err = svc.FindByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestUserService_RegisterValidation(t *testing.T) {
	_, svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	input := SignUpInput{
		Username: "A!",
		Name:     "  ",
		Email:    "not-an-email",
		Password: "short",
	}
	_, err := svc.Register(context.Background(), input)
	require.Error(t, err)

	var fe FieldErrors
	require.True(t, errors.As(err, &fe), "expected FieldErrors, got %T", err)
	assert.Contains(t, fe, "username")
	assert.Contains(t, fe, "name")
	assert.Contains(t, fe, "email")
	assert.Contains(t, fe, "password")
}

func TestUserService_RegisterDuplicates(t *testing.T) {
	db, svc, cleanup := setupUserServiceTest(t)
	defer cleanup()
	ensureTestIndexes(t, db)

	_, err := svc.Register(context.Background(), validSignUp("bob"))
	require.NoError(t, err)

	// Same username, different email
	dup := validSignUp("bob")
	dup.Email = "other@example.com"
	_, err = svc.Register(context.Background(), dup)
	assert.ErrorIs(t, err, ErrUsernameExists)

	// Same email, different username
	dup2 := validSignUp("robert")
	dup2.Email = "bob@example.com"
	_, err = svc.Register(context.Background(), dup2)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserService_Authenticate(t *testing.T) {
	_, svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	_, err := svc.Register(context.Background(), validSignUp("carol"))
	require.NoError(t, err)

	// By username
	user, err := svc.Authenticate(context.Background(), "carol", "password123")
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)

	// By email
	user, err = svc.Authenticate(context.Background(), "carol@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)

	// Wrong password
	_, err = svc.Authenticate(context.Background(), "carol", "wrongpass123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown user
	_, err = svc.Authenticate(context.Background(), "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_SuspendBlocksLogin(t *testing.T) {
	_, svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	_, err := svc.Register(context.Background(), validSignUp("dave"))
	require.NoError(t, err)

	err = svc.SuspendUser(context.Background(), "dave", "admin")
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "dave", "password123")
	assert.ErrorIs(t, err, ErrUserSuspended)

	err = svc.UnsuspendUser(context.Background(), "dave")
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "dave", "password123")
	assert.NoError(t, err)
}

func TestUserService_SuspendSelfRejected(t *testing.T) {
	_, svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	err := svc.SuspendUser(context.Background(), "admin", "admin")
	assert.Error(t, err)
}

func TestUserService_DeleteUserAndListings(t *testing.T) {
	db, svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	_, err := svc.Register(context.Background(), validSignUp("erin"))
	require.NoError(t, err)

	listingSvc := NewListingService(db, testConfig())
	listing, err := listingSvc.CreateListing(context.Background(), "erin", "Bike", "Good bike", nil, nil, "NZ", nil)
	require.NoError(t, err)

	err = svc.DeleteUserAndListings(context.Background(), "erin")
	require.NoError(t, err)

	_, err = svc.FindByUsername(context.Background(), "erin")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	_, err = listingSvc.FindListingByID(context.Background(), listing.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}
