package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// MarkAsRead marks one notification read for its owner. Marking an already
// read notification is a no-op that keeps the original read timestamp.
func (d *Dispatcher) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := d.store.MarkAsRead(ctx, id, userID); err != nil {
		if errors.Is(err, db.ErrNotificationNotFound) {
			return err
		}
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllAsRead marks every unread notification of a user read and returns
// how many rows changed. Running it twice in a row returns zero the second
// time and leaves read timestamps untouched.
func (d *Dispatcher) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := d.store.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read for user %s: %w", userID, err)
	}
	return n, nil
}

// ListUserNotifications returns one page of a user's notifications, newest
// first. Listing is fail-soft: a store failure is logged and an empty page
// returned so the notification bell never breaks the product surface.
func (d *Dispatcher) ListUserNotifications(ctx context.Context, userID uuid.UUID, filter db.NotificationFilter) *db.NotificationPage {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	page, err := d.store.ListNotificationsByUser(ctx, userID, filter)
	if err != nil {
		d.logger.Error("failed to list notifications, returning empty page",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return &db.NotificationPage{
			Items:  []*db.Notification{},
			Limit:  filter.Limit,
			Offset: filter.Offset,
		}
	}

	if page.Items == nil {
		page.Items = []*db.Notification{}
	}
	return page
}

// UnreadCount returns how many unread notifications a user has.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := d.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread for user %s: %w", userID, err)
	}
	return n, nil
}
