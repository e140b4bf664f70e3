package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
	"github.com/amelnyk/slotly-notify/internal/template"
)

// bookingDateLayout is the human-readable form of the scheduled time used
// in titles, messages, and detail rows.
const bookingDateLayout = "02.01.2006 15:04"

// SendBookingNotification notifies both parties of a booking about a
// lifecycle event. Title and message default to the localized catalog
// content for the type; callers may override either. The two recipients
// are dispatched concurrently and independently, so one party failing
// never silences the other.
func (d *Dispatcher) SendBookingNotification(ctx context.Context, bookingID uuid.UUID, notifType, customTitle, customMessage string) error {
	booking, err := d.store.GetBookingWithParties(ctx, bookingID)
	if err != nil {
		if errors.Is(err, db.ErrBookingNotFound) {
			return err
		}
		return fmt.Errorf("load booking %s: %w", bookingID, err)
	}

	content, known := template.ContentForBookingType(notifType)

	title := customTitle
	if title == "" {
		if known {
			title = content.TitleKey
		} else {
			title = notifType
		}
	}
	message := customMessage
	if message == "" && known {
		message = content.MessageKey
	}

	date := booking.ScheduledAt.Format(bookingDateLayout)
	payload := Payload{
		Type:    notifType,
		Title:   title,
		Message: message,
		Data: map[string]any{
			"bookingId": booking.ID.String(),
			"service":   booking.ServiceName,
			"date":      date,
			"status":    booking.Status,
		},
		Variables: map[string]string{
			"service": booking.ServiceName,
			"date":    date,
		},
		EmailTemplate: content.EmailTemplate,
		SMSTemplate:   content.SMSTemplate,
		Priority:      db.PriorityNormal,
	}

	recipients := make([]*db.User, 0, 2)
	if booking.Customer != nil {
		recipients = append(recipients, booking.Customer)
	}
	if booking.Specialist != nil {
		recipients = append(recipients, booking.Specialist)
	}

	var wg sync.WaitGroup
	for _, user := range recipients {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			if _, err := d.Dispatch(ctx, userID, payload); err != nil {
				d.logger.Error("booking notification failed for party",
					zap.String("booking_id", booking.ID.String()),
					zap.String("user_id", userID.String()),
					zap.String("type", notifType),
					zap.Error(err),
				)
			}
		}(user.ID)
	}
	wg.Wait()

	return nil
}
