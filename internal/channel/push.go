package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
	"github.com/amelnyk/slotly-notify/internal/redis"
)

// PushTransport is the optional live-push hop behind the feed write. A user
// may have several registered devices, hence the sent/failed counts.
type PushTransport interface {
	Publish(ctx context.Context, userID, title, message string, data json.RawMessage) (sent, failed int, err error)
}

// PushSender appends the notification to the user's capped Redis feed for
// client polling/streaming, and optionally forwards it to a live push
// transport. The feed write is the success criterion; a live-push failure
// is logged and ignored.
type PushSender struct {
	feed      *redis.Feed
	transport PushTransport // nil when no live transport is configured
	logger    *zap.Logger
}

// NewPushSender creates a push sender. transport may be nil.
func NewPushSender(feed *redis.Feed, transport PushTransport, logger *zap.Logger) *PushSender {
	return &PushSender{
		feed:      feed,
		transport: transport,
		logger:    logger,
	}
}

func (s *PushSender) Channel() string {
	return db.ChannelPush
}

func (s *PushSender) Send(ctx context.Context, d *Delivery) error {
	entry := redis.FeedEntry{
		ID:      d.NotificationID.String(),
		Type:    d.Type,
		Title:   d.Title,
		Message: d.Message,
		Data:    d.Data,
	}

	if err := s.feed.Push(ctx, d.User.ID.String(), entry); err != nil {
		return fmt.Errorf("feed write failed: %w", err)
	}

	if s.transport != nil {
		sent, failed, err := s.transport.Publish(ctx, d.User.ID.String(), d.Title, d.Message, d.Data)
		if err != nil {
			s.logger.Warn("live push delivery failed, feed write succeeded",
				zap.Error(err),
				zap.String("notification_id", d.NotificationID.String()),
			)
		} else {
			s.logger.Debug("live push delivered",
				zap.String("notification_id", d.NotificationID.String()),
				zap.Int("sent", sent),
				zap.Int("failed", failed),
			)
		}
	}

	return nil
}

// SNSPushTransport publishes live push events to an SNS topic whose
// subscriptions fan out to the registered device endpoints.
type SNSPushTransport struct {
	client   *sns.Client
	topicARN string
	logger   *zap.Logger
}

type SNSPushConfig struct {
	Region   string
	TopicARN string
}

// NewSNSPushTransport creates an SNS-backed live push transport.
func NewSNSPushTransport(ctx context.Context, cfg SNSPushConfig, logger *zap.Logger) (*SNSPushTransport, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return &SNSPushTransport{
		client:   sns.NewFromConfig(awsCfg),
		topicARN: cfg.TopicARN,
		logger:   logger,
	}, nil
}

type pushEnvelope struct {
	UserID  string          `json:"user_id"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (t *SNSPushTransport) Publish(ctx context.Context, userID, title, message string, data json.RawMessage) (int, int, error) {
	body, err := json.Marshal(pushEnvelope{
		UserID:  userID,
		Title:   title,
		Message: message,
		Data:    data,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("marshal push envelope: %w", err)
	}

	result, err := t.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(t.topicARN),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return 0, 1, fmt.Errorf("sns publish failed: %w", err)
	}

	t.logger.Debug("push event published",
		zap.String("user_id", userID),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return 1, 0, nil
}
