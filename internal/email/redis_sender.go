package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhiram-s2002/racer-sub005/internal/config"
)

// RedisSender implements the Sender interface by storing emails in Redis.
// Integration tests retrieve them via the Service API's getTestEmail.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores a representation of the email in Redis instead of sending it via SMTP.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	// Classify by subject so tests can look up the mock email by kind.
	bodyStr := string(rawMessage)
	emailKind := "unknown"
	if strings.Contains(subject, "New ping") {
		emailKind = "ping_received"
	} else if strings.Contains(subject, "accepted your ping") {
		emailKind = "ping_accepted"
	} else if strings.Contains(subject, "New message") {
		emailKind = "new_message"
	} else if strings.Contains(subject, "Welcome") {
		emailKind = "welcome"
	}

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":        strings.Join(to, ", "),
		"from":      s.cfg.SmtpFromAddress,
		"subject":   subject,
		"body":      bodyStr,
		"sent_at":   time.Now().UTC().Format(time.RFC3339Nano),
		"emailKind": emailKind,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := fmt.Sprintf("mockemail:%s:%s", primaryTo, emailKind)
	ttl := 5 * time.Minute

	err = s.client.Set(ctx, key, jsonData, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, ttl, strings.Join(to, ", "), subject)
	return nil
}
