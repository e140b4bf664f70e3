package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Repository handles database operations for users, notifications,
// templates and bookings.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetUser loads the contact fields and opt-in flags for one user.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT
			id, email, phone_number, telegram_id, language,
			first_name, last_name,
			email_notifications, push_notifications, telegram_notifications,
			is_active
		FROM users
		WHERE id = $1
	`

	var u User
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Email,
		&u.PhoneNumber,
		&u.TelegramID,
		&u.Language,
		&u.FirstName,
		&u.LastName,
		&u.EmailNotifications,
		&u.PushNotifications,
		&u.TelegramNotifications,
		&u.IsActive,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		r.logger.Error("failed to get user",
			zap.Error(err),
			zap.String("user_id", id.String()),
		)
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &u, nil
}

// ListActiveUsers pages through active users, oldest account first, for
// broadcast batching.
func (r *Repository) ListActiveUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	query := `
		SELECT
			id, email, phone_number, telegram_id, language,
			first_name, last_name,
			email_notifications, push_notifications, telegram_notifications,
			is_active
		FROM users
		WHERE is_active = true
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		err := rows.Scan(
			&u.ID,
			&u.Email,
			&u.PhoneNumber,
			&u.TelegramID,
			&u.Language,
			&u.FirstName,
			&u.LastName,
			&u.EmailNotifications,
			&u.PushNotifications,
			&u.TelegramNotifications,
			&u.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return users, nil
}

// CreateNotification inserts a new notification with all delivery flags
// unset.
func (r *Repository) CreateNotification(ctx context.Context, notif *Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, type, title, message, data, priority
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		notif.ID,
		notif.UserID,
		notif.Type,
		notif.Title,
		notif.Message,
		notif.Data,
		notif.Priority,
	).Scan(&notif.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
		)
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

// MarkChannelSent stamps one channel's delivery flag. Flags are set, never
// cleared.
func (r *Repository) MarkChannelSent(ctx context.Context, id uuid.UUID, channel string) error {
	var column string
	switch channel {
	case ChannelEmail:
		column = "email_sent"
	case ChannelSMS:
		column = "sms_sent"
	case ChannelTelegram:
		column = "telegram_sent"
	case ChannelPush:
		column = "push_sent"
	default:
		return fmt.Errorf("unknown channel: %s", channel)
	}

	query := fmt.Sprintf(`UPDATE notifications SET %s = true WHERE id = $1`, column)

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark %s sent: %w", channel, err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkAsRead marks one notification read, scoped to its owner. Returns
// ErrNotificationNotFound when the id does not exist or belongs to another
// user.
func (r *Repository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_read = true, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkAllAsRead marks every unread notification of the user read. The
// is_read guard keeps read_at stable across repeated calls.
func (r *Repository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		UPDATE notifications
		SET is_read = true, read_at = NOW()
		WHERE user_id = $1 AND is_read = false
	`

	result, err := r.db.Pool().Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all as read: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListNotificationsByUser returns one page of a user's notifications,
// newest first, optionally filtered by type and read state, plus the total
// matching count.
func (r *Repository) ListNotificationsByUser(ctx context.Context, userID uuid.UUID, filter NotificationFilter) (*NotificationPage, error) {
	where := "WHERE user_id = $1"
	args := []any{userID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Unread != nil {
		args = append(args, !*filter.Unread)
		where += fmt.Sprintf(" AND is_read = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM notifications " + where
	if err := r.db.Pool().QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT
			id, user_id, type, title, message, data, priority,
			email_sent, sms_sent, telegram_sent, push_sent,
			is_read, read_at, created_at
		FROM notifications
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var items []*Notification
	for rows.Next() {
		var n Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.Data,
			&n.Priority,
			&n.EmailSent,
			&n.SMSSent,
			&n.TelegramSent,
			&n.PushSent,
			&n.IsRead,
			&n.ReadAt,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &NotificationPage{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// CountUnread returns the user's unread notification count.
func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`

	if err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}

	return count, nil
}

// GetEmailTemplate loads an active email template by name. Retired
// templates look identical to missing ones, so callers soft-skip either
// way.
func (r *Repository) GetEmailTemplate(ctx context.Context, name string) (*EmailTemplate, error) {
	query := `
		SELECT id, name, subject, body, subject_uk, body_uk, subject_ru, body_ru, is_active
		FROM email_templates
		WHERE name = $1 AND is_active = true
	`

	var t EmailTemplate
	err := r.db.Pool().QueryRow(ctx, query, name).Scan(
		&t.ID,
		&t.Name,
		&t.Subject,
		&t.Body,
		&t.SubjectUK,
		&t.BodyUK,
		&t.SubjectRU,
		&t.BodyRU,
		&t.IsActive,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("query email template: %w", err)
	}

	return &t, nil
}

// GetSMSTemplate loads an active SMS template by name.
func (r *Repository) GetSMSTemplate(ctx context.Context, name string) (*SMSTemplate, error) {
	query := `
		SELECT id, name, body, body_uk, body_ru, is_active
		FROM sms_templates
		WHERE name = $1 AND is_active = true
	`

	var t SMSTemplate
	err := r.db.Pool().QueryRow(ctx, query, name).Scan(
		&t.ID,
		&t.Name,
		&t.Body,
		&t.BodyUK,
		&t.BodyRU,
		&t.IsActive,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("query sms template: %w", err)
	}

	return &t, nil
}

// GetBookingWithParties loads a booking together with its customer and
// specialist contact projections.
func (r *Repository) GetBookingWithParties(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `
		SELECT
			b.id, b.service_name, b.scheduled_at, b.status,
			c.id, c.email, c.phone_number, c.telegram_id, c.language,
			c.first_name, c.last_name,
			c.email_notifications, c.push_notifications, c.telegram_notifications,
			c.is_active,
			s.id, s.email, s.phone_number, s.telegram_id, s.language,
			s.first_name, s.last_name,
			s.email_notifications, s.push_notifications, s.telegram_notifications,
			s.is_active
		FROM bookings b
		JOIN users c ON c.id = b.customer_id
		JOIN users s ON s.id = b.specialist_id
		WHERE b.id = $1
	`

	var (
		b          Booking
		customer   User
		specialist User
	)
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.ServiceName,
		&b.ScheduledAt,
		&b.Status,
		&customer.ID,
		&customer.Email,
		&customer.PhoneNumber,
		&customer.TelegramID,
		&customer.Language,
		&customer.FirstName,
		&customer.LastName,
		&customer.EmailNotifications,
		&customer.PushNotifications,
		&customer.TelegramNotifications,
		&customer.IsActive,
		&specialist.ID,
		&specialist.Email,
		&specialist.PhoneNumber,
		&specialist.TelegramID,
		&specialist.Language,
		&specialist.FirstName,
		&specialist.LastName,
		&specialist.EmailNotifications,
		&specialist.PushNotifications,
		&specialist.TelegramNotifications,
		&specialist.IsActive,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}

	if err != nil {
		r.logger.Error("failed to get booking",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("query booking: %w", err)
	}

	b.Customer = &customer
	b.Specialist = &specialist

	return &b, nil
}
