package db

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors surfaced to dispatcher callers. Everything else stays
// wrapped as internal failures.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrTemplateNotFound     = errors.New("template not found")
)

// Channel constants
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelTelegram = "telegram"
	ChannelPush     = "push"
)

// Priority constants. Advisory only: stored and validated, not enforced.
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// User carries the contact fields and channel opt-ins the dispatcher needs.
// It is a narrow read-only projection of the marketplace users table.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	TelegramID  string    `json:"telegram_id"`
	Language    string    `json:"language"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`

	EmailNotifications    bool `json:"email_notifications"`
	PushNotifications     bool `json:"push_notifications"`
	TelegramNotifications bool `json:"telegram_notifications"`

	IsActive bool `json:"is_active"`
}

// Notification is one dispatched notification. The four sent flags are
// stamped independently by each channel after delivery; they are set, never
// cleared.
type Notification struct {
	ID       uuid.UUID       `json:"id"`
	UserID   uuid.UUID       `json:"user_id"`
	Type     string          `json:"type"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data,omitempty"`
	Priority string          `json:"priority"`

	EmailSent    bool `json:"email_sent"`
	SMSSent      bool `json:"sms_sent"`
	TelegramSent bool `json:"telegram_sent"`
	PushSent     bool `json:"push_sent"`

	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// EmailTemplate is a named, DB-managed email template with optional
// Ukrainian and Russian variants. Inactive templates are unusable.
type EmailTemplate struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SubjectUK *string   `json:"subject_uk,omitempty"`
	BodyUK    *string   `json:"body_uk,omitempty"`
	SubjectRU *string   `json:"subject_ru,omitempty"`
	BodyRU    *string   `json:"body_ru,omitempty"`
	IsActive  bool      `json:"is_active"`
}

// SMSTemplate is the SMS counterpart of EmailTemplate.
type SMSTemplate struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Body     string    `json:"body"`
	BodyUK   *string   `json:"body_uk,omitempty"`
	BodyRU   *string   `json:"body_ru,omitempty"`
	IsActive bool      `json:"is_active"`
}

// Booking is a marketplace booking loaded with both parties for the
// booking notification convenience path.
type Booking struct {
	ID          uuid.UUID `json:"id"`
	ServiceName string    `json:"service_name"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`

	Customer   *User `json:"customer"`
	Specialist *User `json:"specialist"`
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	Type   string // empty = all types
	Unread *bool  // nil = both read and unread
	Limit  int
	Offset int
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Items  []*Notification `json:"data"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ValidPriority reports whether p is one of the four advisory levels.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
