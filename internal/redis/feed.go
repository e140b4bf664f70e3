package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FeedCap is the number of entries retained per user. Older entries are
// trimmed off the tail, newest-first order is preserved under concurrent
// writers because push and trim run in one pipeline.
const FeedCap = 100

// FeedEntry is the JSON envelope stored in a user's feed. Clients poll or
// stream this list for near-real-time in-app notifications.
type FeedEntry struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Timestamp int64             `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Feed maintains the capped per-user notification lists.
type Feed struct {
	client *Client
	logger *zap.Logger
}

// NewFeed creates a feed service on top of an established client.
func NewFeed(client *Client, logger *zap.Logger) *Feed {
	return &Feed{client: client, logger: logger}
}

func feedKey(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// Push prepends an entry to the user's feed and trims it to FeedCap in the
// same pipeline, so two racing dispatches both survive and only positional
// overflow is evicted.
func (f *Feed) Push(ctx context.Context, userID string, entry FeedEntry) error {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal feed entry: %w", err)
	}

	key := feedKey(userID)

	pipe := f.client.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, FeedCap-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push feed entry: %w", err)
	}

	f.logger.Debug("feed entry pushed",
		zap.String("user_id", userID),
		zap.String("notification_id", entry.ID),
	)

	return nil
}

// Recent returns up to n of the newest entries, newest first.
func (f *Feed) Recent(ctx context.Context, userID string, n int) ([]FeedEntry, error) {
	if n <= 0 || n > FeedCap {
		n = FeedCap
	}

	raw, err := f.client.rdb.LRange(ctx, feedKey(userID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	entries := make([]FeedEntry, 0, len(raw))
	for _, item := range raw {
		var entry FeedEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			f.logger.Warn("skipping malformed feed entry",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Len returns the current feed length for a user.
func (f *Feed) Len(ctx context.Context, userID string) (int64, error) {
	return f.client.rdb.LLen(ctx, feedKey(userID)).Result()
}
