package channel

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
)

// SMSTransport is the outbound SMS integration point. The marketplace has
// not committed to a vendor, so the transport is supplied by the deployment
// rather than implemented here.
type SMSTransport interface {
	Send(ctx context.Context, to, message string) error
}

// SMSSender composes the plain-text message and hands it to the transport.
type SMSSender struct {
	transport SMSTransport
	logger    *zap.Logger
}

// NewSMSSender creates an SMS sender over an externally supplied transport.
func NewSMSSender(transport SMSTransport, logger *zap.Logger) *SMSSender {
	return &SMSSender{
		transport: transport,
		logger:    logger,
	}
}

func (s *SMSSender) Channel() string {
	return db.ChannelSMS
}

// Send builds the text and transmits it. Format: title, greeting, body,
// then service/date detail lines when present.
func (s *SMSSender) Send(ctx context.Context, d *Delivery) error {
	if d.User.PhoneNumber == "" {
		return fmt.Errorf("delivery missing recipient phone number")
	}
	if d.SMSBody == "" {
		return fmt.Errorf("delivery missing sms body")
	}

	if err := s.transport.Send(ctx, d.User.PhoneNumber, ComposeSMSText(d)); err != nil {
		return fmt.Errorf("sms transport failed: %w", err)
	}

	s.logger.Info("sms sent",
		zap.String("notification_id", d.NotificationID.String()),
		zap.String("to", d.User.PhoneNumber),
	)

	return nil
}

// ComposeSMSText renders the plain-text SMS payload.
func ComposeSMSText(d *Delivery) string {
	var b strings.Builder

	b.WriteString(d.Title)
	b.WriteString("\n")

	if d.User.FirstName != "" {
		fmt.Fprintf(&b, "Hi %s,\n", d.User.FirstName)
	}

	b.WriteString(d.SMSBody)

	if service, ok := d.Details["service"]; ok {
		fmt.Fprintf(&b, "\nService: %s", service)
	}
	if date, ok := d.Details["date"]; ok {
		fmt.Fprintf(&b, "\nDate: %s", date)
	}

	return b.String()
}

// LogSMSTransport writes messages to the log instead of a provider. It is
// the development stand-in until a real transport is wired.
type LogSMSTransport struct {
	logger *zap.Logger
}

// NewLogSMSTransport creates the development transport.
func NewLogSMSTransport(logger *zap.Logger) *LogSMSTransport {
	return &LogSMSTransport{logger: logger}
}

func (t *LogSMSTransport) Send(_ context.Context, to, message string) error {
	t.logger.Info("sms logged (development transport)",
		zap.String("to", to),
		zap.String("message", message),
	)
	return nil
}
