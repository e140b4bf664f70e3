package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/channel"
)

// ProtectedSender wraps a channel sender with a CircuitBreaker. When the
// downstream transport starts failing, the circuit opens and sends for
// that channel fail fast instead of piling up; the dispatcher treats the
// rejection like any other per-channel soft failure.
type ProtectedSender struct {
	sender  channel.Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender channel.Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Channel reports the wrapped sender's channel.
func (p *ProtectedSender) Channel() string {
	return p.sender.Channel()
}

// Send attempts a delivery through the circuit breaker. If the circuit is
// open it returns ErrCircuitOpen immediately.
func (p *ProtectedSender) Send(ctx context.Context, d *channel.Delivery) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected delivery",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("notification_id", d.NotificationID.String()),
			zap.String("channel", p.sender.Channel()),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	err := p.sender.Send(ctx, d)
	if err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}
