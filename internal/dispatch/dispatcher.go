// Package dispatch is the core of the notification service: it resolves a
// notification request against the recipient's language and preferences,
// persists the record, and fans the delivery out to every eligible channel
// independently.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/channel"
	"github.com/amelnyk/slotly-notify/internal/db"
	"github.com/amelnyk/slotly-notify/internal/metrics"
	"github.com/amelnyk/slotly-notify/internal/template"
)

// Skip reasons recorded when a channel is excluded before sending.
const (
	skipOptedOut       = "opted_out"
	skipNoContact      = "no_contact"
	skipNoTransport    = "transport_disabled"
	skipNoTemplate     = "template_missing"
	skipNoTemplateKey  = "no_template_key"
	skipTemplateLookup = "template_lookup_failed"
)

// Payload describes one notification to dispatch. Title and Message may be
// catalog keys or literal text; Variables feeds placeholder interpolation
// for both of them and for any named channel templates.
type Payload struct {
	Type          string
	Title         string
	Message       string
	Data          map[string]any
	Variables     map[string]string
	EmailTemplate string
	SMSTemplate   string
	Priority      string
}

// Store is the persistence surface the dispatcher needs. *db.Repository
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	ListActiveUsers(ctx context.Context, limit, offset int) ([]*db.User, error)

	CreateNotification(ctx context.Context, notif *db.Notification) error
	MarkChannelSent(ctx context.Context, id uuid.UUID, channel string) error
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	ListNotificationsByUser(ctx context.Context, userID uuid.UUID, filter db.NotificationFilter) (*db.NotificationPage, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)

	GetEmailTemplate(ctx context.Context, name string) (*db.EmailTemplate, error)
	GetSMSTemplate(ctx context.Context, name string) (*db.SMSTemplate, error)
	GetBookingWithParties(ctx context.Context, id uuid.UUID) (*db.Booking, error)
}

// Outcome is the result of one channel attempt within a dispatch.
type Outcome struct {
	Channel string
	Skipped bool
	Reason  string
	Err     error
}

// Config tunes dispatcher behavior.
type Config struct {
	// BroadcastBatchSize is the page size used when walking all active
	// users during a broadcast.
	BroadcastBatchSize int
}

// Dispatcher orchestrates notification delivery across channels.
type Dispatcher struct {
	store     Store
	senders   map[string]channel.Sender
	logger    *zap.Logger
	batchSize int
}

// New creates a Dispatcher. Senders are keyed by their Channel(); a channel
// without a sender is treated as an unconfigured transport and skipped
// softly at dispatch time.
func New(store Store, senders []channel.Sender, cfg Config, logger *zap.Logger) *Dispatcher {
	byChannel := make(map[string]channel.Sender, len(senders))
	for _, s := range senders {
		if s == nil {
			continue
		}
		byChannel[s.Channel()] = s
	}

	batch := cfg.BroadcastBatchSize
	if batch <= 0 {
		batch = 100
	}

	return &Dispatcher{
		store:     store,
		senders:   byChannel,
		logger:    logger,
		batchSize: batch,
	}
}

// Dispatch sends one notification to one user. The record is persisted
// before any channel is attempted, then every eligible channel is tried
// concurrently and independently; a channel failure never fails the
// dispatch. The returned record is the row as created - sent flags stamped
// by the channels land in the store, not in the returned struct.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uuid.UUID, p Payload) (*db.Notification, error) {
	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	lang := user.Language
	if lang == "" {
		lang = template.DefaultLanguage
	}

	priority := p.Priority
	if !db.ValidPriority(priority) {
		priority = db.PriorityNormal
	}

	var data json.RawMessage
	if len(p.Data) > 0 {
		data, err = json.Marshal(p.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal notification data: %w", err)
		}
	}

	notif := &db.Notification{
		ID:       uuid.New(),
		UserID:   user.ID,
		Type:     p.Type,
		Title:    template.Resolve(p.Title, lang, p.Variables),
		Message:  template.Resolve(p.Message, lang, p.Variables),
		Data:     data,
		Priority: priority,
	}

	if err := d.store.CreateNotification(ctx, notif); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	metrics.RecordDispatch(p.Type)

	outcomes := d.fanOut(ctx, user, notif, p, lang)

	sent, failed, skipped := 0, 0, 0
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			failed++
		default:
			sent++
		}
	}

	d.logger.Info("notification dispatched",
		zap.String("notification_id", notif.ID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("type", p.Type),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
	)

	snapshot := *notif
	return &snapshot, nil
}

// attempt is one channel ready to send: the sender plus the delivery it
// will receive.
type attempt struct {
	sender   channel.Sender
	delivery *channel.Delivery
}

// fanOut evaluates eligibility for each channel, launches every eligible
// send concurrently, and waits for all of them to settle. Each success is
// stamped onto the stored record before the outcome is recorded.
func (d *Dispatcher) fanOut(ctx context.Context, user *db.User, notif *db.Notification, p Payload, lang string) []Outcome {
	base := channel.Delivery{
		NotificationID: notif.ID,
		User:           user,
		Type:           notif.Type,
		Title:          notif.Title,
		Message:        notif.Message,
		Details:        stringifyData(p.Data),
		Data:           notif.Data,
	}

	var (
		outcomes []Outcome
		attempts []attempt
	)

	collect := func(ch string, ok bool, reason string, prepare func(*channel.Delivery)) {
		if !ok {
			metrics.RecordChannelSkip(ch, reason)
			d.logger.Debug("channel skipped",
				zap.String("notification_id", notif.ID.String()),
				zap.String("channel", ch),
				zap.String("reason", reason),
			)
			outcomes = append(outcomes, Outcome{Channel: ch, Skipped: true, Reason: reason})
			return
		}

		delivery := base
		if prepare != nil {
			prepare(&delivery)
		}
		attempts = append(attempts, attempt{sender: d.senders[ch], delivery: &delivery})
	}

	emailOK, emailReason, emailPrep := d.prepareEmail(ctx, user, p, lang)
	collect(db.ChannelEmail, emailOK, emailReason, emailPrep)

	smsOK, smsReason, smsPrep := d.prepareSMS(ctx, user, p, lang)
	collect(db.ChannelSMS, smsOK, smsReason, smsPrep)

	tgOK, tgReason := d.eligibleTelegram(user)
	collect(db.ChannelTelegram, tgOK, tgReason, nil)

	pushOK, pushReason := d.eligiblePush(user)
	collect(db.ChannelPush, pushOK, pushReason, nil)

	results := make([]Outcome, len(attempts))
	var wg sync.WaitGroup
	for i, a := range attempts {
		wg.Add(1)
		go func(i int, a attempt) {
			defer wg.Done()
			results[i] = d.sendOne(ctx, a)
		}(i, a)
	}
	wg.Wait()

	return append(outcomes, results...)
}

// sendOne runs a single channel attempt and stamps the sent flag on
// success. Flag-stamp failures are logged, not surfaced: the delivery
// happened, the record just lags behind.
func (d *Dispatcher) sendOne(ctx context.Context, a attempt) Outcome {
	ch := a.sender.Channel()
	start := time.Now()

	err := a.sender.Send(ctx, a.delivery)
	metrics.RecordChannelSendDuration(ch, time.Since(start))

	if err != nil {
		metrics.RecordChannelAttempt(ch, "failed")
		d.logger.Error("channel delivery failed",
			zap.String("notification_id", a.delivery.NotificationID.String()),
			zap.String("channel", ch),
			zap.Error(err),
		)
		return Outcome{Channel: ch, Err: err}
	}

	metrics.RecordChannelAttempt(ch, "sent")

	if err := d.store.MarkChannelSent(ctx, a.delivery.NotificationID, ch); err != nil {
		d.logger.Error("failed to stamp sent flag",
			zap.String("notification_id", a.delivery.NotificationID.String()),
			zap.String("channel", ch),
			zap.Error(err),
		)
	}

	return Outcome{Channel: ch}
}

// prepareEmail decides email eligibility and, when a named template is
// requested, resolves it. A missing or inactive template skips the channel;
// without a template key the title and message serve as subject and body.
func (d *Dispatcher) prepareEmail(ctx context.Context, user *db.User, p Payload, lang string) (bool, string, func(*channel.Delivery)) {
	if _, ok := d.senders[db.ChannelEmail]; !ok {
		return false, skipNoTransport, nil
	}
	if !user.EmailNotifications {
		return false, skipOptedOut, nil
	}
	if user.Email == "" {
		return false, skipNoContact, nil
	}

	if p.EmailTemplate == "" {
		return true, "", func(del *channel.Delivery) {
			del.EmailSubject = del.Title
			del.EmailBody = del.Message
		}
	}

	tmpl, err := d.store.GetEmailTemplate(ctx, p.EmailTemplate)
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			d.logger.Warn("email template missing, skipping channel",
				zap.String("template", p.EmailTemplate),
			)
			return false, skipNoTemplate, nil
		}
		d.logger.Error("email template lookup failed",
			zap.String("template", p.EmailTemplate),
			zap.Error(err),
		)
		return false, skipTemplateLookup, nil
	}

	subject, body := template.LocalizeEmail(tmpl, lang)
	subject = template.Interpolate(subject, p.Variables)
	body = template.Interpolate(body, p.Variables)

	return true, "", func(del *channel.Delivery) {
		del.EmailSubject = subject
		del.EmailBody = body
	}
}

// prepareSMS decides sms eligibility. SMS is template-only: a dispatch
// without an sms template key never reaches the phone.
func (d *Dispatcher) prepareSMS(ctx context.Context, user *db.User, p Payload, lang string) (bool, string, func(*channel.Delivery)) {
	if _, ok := d.senders[db.ChannelSMS]; !ok {
		return false, skipNoTransport, nil
	}
	if user.PhoneNumber == "" {
		return false, skipNoContact, nil
	}
	if p.SMSTemplate == "" {
		return false, skipNoTemplateKey, nil
	}

	tmpl, err := d.store.GetSMSTemplate(ctx, p.SMSTemplate)
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			d.logger.Warn("sms template missing, skipping channel",
				zap.String("template", p.SMSTemplate),
			)
			return false, skipNoTemplate, nil
		}
		d.logger.Error("sms template lookup failed",
			zap.String("template", p.SMSTemplate),
			zap.Error(err),
		)
		return false, skipTemplateLookup, nil
	}

	body := template.Interpolate(template.LocalizeSMS(tmpl, lang), p.Variables)

	return true, "", func(del *channel.Delivery) {
		del.SMSBody = body
	}
}

func (d *Dispatcher) eligibleTelegram(user *db.User) (bool, string) {
	if _, ok := d.senders[db.ChannelTelegram]; !ok {
		return false, skipNoTransport
	}
	if !user.TelegramNotifications {
		return false, skipOptedOut
	}
	if user.TelegramID == "" {
		return false, skipNoContact
	}
	return true, ""
}

func (d *Dispatcher) eligiblePush(user *db.User) (bool, string) {
	if _, ok := d.senders[db.ChannelPush]; !ok {
		return false, skipNoTransport
	}
	if !user.PushNotifications {
		return false, skipOptedOut
	}
	return true, ""
}

// stringifyData coerces the structured payload into the flat string map
// the email and sms formatters render as detail rows.
func stringifyData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}
