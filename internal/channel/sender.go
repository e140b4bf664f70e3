// Package channel holds the four delivery adapters (email, sms, telegram,
// push). Senders are stateless per call and mutually unaware: each one
// receives a fully resolved Delivery and either hands it to its transport
// or fails on its own.
package channel

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/amelnyk/slotly-notify/internal/db"
)

// Delivery is one resolved notification handed to a sender. Title, message
// and the channel bodies are already localized and interpolated; senders
// only format and transmit.
type Delivery struct {
	NotificationID uuid.UUID
	User           *db.User
	Type           string
	Title          string
	Message        string

	// EmailSubject/EmailBody come from a named template when one matched,
	// otherwise they mirror Title/Message (the generic fallback).
	EmailSubject string
	EmailBody    string

	// SMSBody is empty unless an sms template key was supplied and resolved.
	SMSBody string

	// Details are the payload data entries coerced to strings, rendered as
	// detail rows/lines by the email and sms formatters.
	Details map[string]string

	// Data is the raw payload carried into the push feed envelope.
	Data json.RawMessage
}

// Sender is the unified interface for all notification channels.
type Sender interface {
	Channel() string
	Send(ctx context.Context, d *Delivery) error
}
