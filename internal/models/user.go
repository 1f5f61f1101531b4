package models

import (
	"time"
)

// NotificationPreferences allows users to control email notifications.
type NotificationPreferences struct {
	PingReceived bool `bson:"ping_received" json:"ping_received"`
	PingAccepted bool `bson:"ping_accepted" json:"ping_accepted"`
	NewMessage   bool `bson:"new_message" json:"new_message"`
}

// User represents an account in the system. Username is the opaque handle
// the ping/chat records refer to; it never changes after signup.
type User struct {
	Base                    `bson:",inline"`
	Username                string                   `bson:"username" json:"username"`
	Name                    string                   `bson:"name" json:"name"`
	Email                   string                   `bson:"email" json:"email"`
	PasswordHash            string                   `bson:"password" json:"-"` // Store hash, not plaintext
	IsAdmin                 bool                     `bson:"is_admin" json:"is_admin"`
	Suspended               bool                     `bson:"suspended" json:"suspended"`
	Activated               bool                     `bson:"activated" json:"activated"`
	NotificationPreferences *NotificationPreferences `bson:"notification_preferences,omitempty" json:"notification_preferences,omitempty"`
	Deleted                 bool                     `bson:"deleted" json:"-"` // Soft delete flag
	CreatedAt               time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt               time.Time                `bson:"updated_at" json:"updated_at"`
}

// EmailPrefs returns the user's notification preferences, defaulting to all
// enabled for accounts that predate the preferences field.
func (u *User) EmailPrefs() NotificationPreferences {
	if u.NotificationPreferences == nil {
		return NotificationPreferences{PingReceived: true, PingAccepted: true, NewMessage: true}
	}
	return *u.NotificationPreferences
}
