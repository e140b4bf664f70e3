package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/metrics"
)

// SendBulk dispatches the same payload to a set of users concurrently.
// Each recipient is isolated: one user's failure (unknown id, store error)
// is logged and does not touch the others.
func (d *Dispatcher) SendBulk(ctx context.Context, userIDs []uuid.UUID, p Payload) {
	var wg sync.WaitGroup
	for _, id := range userIDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := d.Dispatch(ctx, id, p); err != nil {
				d.logger.Error("bulk dispatch failed for user",
					zap.String("user_id", id.String()),
					zap.String("type", p.Type),
					zap.Error(err),
				)
			}
		}(id)
	}
	wg.Wait()
}

// SendToAllUsers dispatches the payload to every active user, paging
// through the user table in creation order so each user is fetched exactly
// once. A page-fetch failure aborts the walk; per-user failures inside a
// page are absorbed by SendBulk.
func (d *Dispatcher) SendToAllUsers(ctx context.Context, p Payload) error {
	offset := 0
	total := 0

	for {
		users, err := d.store.ListActiveUsers(ctx, d.batchSize, offset)
		if err != nil {
			return fmt.Errorf("list active users at offset %d: %w", offset, err)
		}
		if len(users) == 0 {
			break
		}

		metrics.RecordBroadcastBatch()

		ids := make([]uuid.UUID, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		d.SendBulk(ctx, ids, p)
		total += len(users)

		if len(users) < d.batchSize {
			break
		}
		offset += d.batchSize
	}

	d.logger.Info("broadcast complete",
		zap.String("type", p.Type),
		zap.Int("recipients", total),
	)
	return nil
}
