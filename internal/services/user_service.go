package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhiram-s2002/racer-sub005/internal/auth"
	"github.com/abhiram-s2002/racer-sub005/internal/config"
	"github.com/abhiram-s2002/racer-sub005/internal/db"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrUsernameExists is returned when the requested username is taken.
var ErrUsernameExists = errors.New("username already taken")

// ErrInvalidCredentials is returned when login fails.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrUserSuspended is returned when a suspended user attempts to log in.
var ErrUserSuspended = errors.New("account is suspended")

var (
	usernameRegexp = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)
	emailRegexp    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// FieldErrors carries per-field validation feedback for signup forms.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msg := range fe {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SignUpInput is the payload for Register.
type SignUpInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	Register(ctx context.Context, input SignUpInput) (*models.User, error)
	Authenticate(ctx context.Context, login, password string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateNotificationPreferences(ctx context.Context, username string, prefs models.NotificationPreferences) error
	SuspendUser(ctx context.Context, usernameToSuspend, adminUsername string) error
	UnsuspendUser(ctx context.Context, username string) error
	DeleteUserAndListings(ctx context.Context, username string) error
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, cfg *config.Config) IUserService {
	return &userService{db: db, cfg: cfg}
}

// validateSignUp collects field-level errors so the client can show all
// problems at once instead of one per round trip.
func (s *userService) validateSignUp(input SignUpInput) FieldErrors {
	fe := FieldErrors{}
	if !usernameRegexp.MatchString(input.Username) {
		fe["username"] = "must be 3-20 characters: lowercase letters, digits and underscores"
	}
	if strings.TrimSpace(input.Name) == "" {
		fe["name"] = "must not be empty"
	}
	if !emailRegexp.MatchString(input.Email) {
		fe["email"] = "must be a valid email address"
	}
	passwordRe, err := regexp.Compile(s.cfg.PasswordRegexp)
	if err != nil {
		log.Printf("WARN: invalid PASSWORD_REGEXP %q, falling back to length check", s.cfg.PasswordRegexp)
		passwordRe = regexp.MustCompile(`^.{8,}$`)
	}
	if !passwordRe.MatchString(input.Password) {
		fe["password"] = "does not meet the password policy"
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Register creates a new activated user account.
// Username and email uniqueness is enforced by unique indexes; duplicate key
// errors are translated to ErrUsernameExists / ErrEmailExists.
func (s *userService) Register(ctx context.Context, input SignUpInput) (*models.User, error) {
	if fe := s.validateSignUp(input); fe != nil {
		return nil, fe
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password for %s: %w", input.Username, err)
	}

	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()

	newUser := &models.User{
		Username:     input.Username,
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hashedPassword,
		IsAdmin:      false,
		Suspended:    false,
		Activated:    true,
		Deleted:      false,
		CreatedAt:    now,
		UpdatedAt:    now,
		NotificationPreferences: &models.NotificationPreferences{
			PingReceived: true,
			PingAccepted: true,
			NewMessage:   true,
		},
	}
	newUser.GenIDIfEmpty()

	_, err = collection.InsertOne(ctx, newUser)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "username") {
				return nil, ErrUsernameExists
			}
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting new user %s: %w", input.Username, err)
	}

	return newUser, nil
}

// Authenticate verifies a username (or email) and password combination.
func (s *userService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	collection := s.db.Collection(usersCollection)

	filter := bson.M{
		"deleted": false,
		"$or": bson.A{
			bson.M{"username": login},
			bson.M{"email": strings.ToLower(login)},
		},
	}

	var user models.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Burn a bcrypt comparison anyway so timing does not reveal
			// whether the account exists.
			auth.CheckPasswordHash(password, "$2a$10$0000000000000000000000000000000000000000000000000000")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error finding user for login %s: %w", login, err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if user.Suspended {
		return nil, ErrUserSuspended
	}

	return &user, nil
}

// FindByUsername finds a non-deleted user by username.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"username": username, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by username %s: %w", username, err)
	}
	return &user, nil
}

// FindByEmail finds a non-deleted user by their email address.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"email": strings.ToLower(email), "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// UpdateNotificationPreferences replaces the user's notification settings.
func (s *userService) UpdateNotificationPreferences(ctx context.Context, username string, prefs models.NotificationPreferences) error {
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"username": username, "deleted": false}
	update := bson.M{"$set": bson.M{
		"notification_preferences": prefs,
		"updated_at":               time.Now().UTC(),
	}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error updating notification preferences for %s: %w", username, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SuspendUser marks a user as suspended.
// Ensures an admin cannot suspend themselves.
func (s *userService) SuspendUser(ctx context.Context, usernameToSuspend, adminUsername string) error {
	if usernameToSuspend == adminUsername {
		return fmt.Errorf("admin cannot suspend themselves")
	}
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"username": usernameToSuspend, "deleted": false}
	update := bson.M{"$set": bson.M{"suspended": true, "updated_at": time.Now().UTC()}}
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error suspending user %s: %w", usernameToSuspend, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments // User not found or already deleted
	}
	log.Printf("User %s suspended by admin %s", usernameToSuspend, adminUsername)
	return nil
}

// UnsuspendUser marks a user as not suspended.
func (s *userService) UnsuspendUser(ctx context.Context, username string) error {
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"username": username, "deleted": false}
	update := bson.M{"$set": bson.M{"suspended": false, "updated_at": time.Now().UTC()}}
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error unsuspending user %s: %w", username, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	log.Printf("User %s unsuspended", username)
	return nil
}

// DeleteUserAndListings performs a soft delete on a user and all their listings.
func (s *userService) DeleteUserAndListings(ctx context.Context, username string) error {
	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()

	filter := bson.M{"username": username, "deleted": false}
	update := bson.M{
		"$set": bson.M{
			"deleted":    true,
			"deleted_at": now,
			"updated_at": now,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error deleting user %s: %w", username, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s not found", username)
	}

	listingFilter := bson.M{
		"seller_username": username,
		"deleted":         false,
	}
	listingUpdate := bson.M{
		"$set": bson.M{
			"deleted":    true,
			"deleted_at": now,
			"updated_at": now,
		},
	}

	_, err = s.db.Collection(listingsCollection).UpdateMany(ctx, listingFilter, listingUpdate)
	if err != nil {
		return fmt.Errorf("db error deleting listings for user %s: %w", username, err)
	}

	return nil
}
