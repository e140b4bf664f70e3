package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/channel"
	"github.com/amelnyk/slotly-notify/internal/db"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3, RecoveryTimeout: time.Minute}, zap.NewNop())

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("request %d should be allowed while closed", i)
		}
		cb.RecordFailure()
	}

	if cb.GetState() != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", cb.GetState())
	}
	if cb.Allow() {
		t.Error("open circuit should reject requests")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3, RecoveryTimeout: time.Minute}, zap.NewNop())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Errorf("non-consecutive failures should not open the circuit, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 1, RecoveryTimeout: 10 * time.Millisecond}, zap.NewNop())

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe request should be allowed after recovery timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.GetState())
	}

	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("successful probe should close the circuit, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 1, RecoveryTimeout: 10 * time.Millisecond}, zap.NewNop())

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe request should be allowed")
	}
	cb.RecordFailure()

	if cb.GetState() != StateOpen {
		t.Errorf("failed probe should reopen the circuit, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 1, RecoveryTimeout: time.Hour}, zap.NewNop())

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("expected closed after reset, got %s", cb.GetState())
	}
	if !cb.Allow() {
		t.Error("reset circuit should allow requests")
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := New(DefaultConfig("ses"), zap.NewNop())

	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()

	stats := cb.Stats()
	if stats.Name != "ses" {
		t.Errorf("unexpected name: %s", stats.Name)
	}
	if stats.TotalRequests != 2 {
		t.Errorf("expected 2 requests, got %d", stats.TotalRequests)
	}
	if stats.TotalSuccesses != 1 || stats.TotalFailures != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.LastFailure == "" {
		t.Error("last failure timestamp should be set")
	}
}

type flakySender struct {
	err   error
	calls int
}

func (f *flakySender) Channel() string { return db.ChannelTelegram }

func (f *flakySender) Send(context.Context, *channel.Delivery) error {
	f.calls++
	return f.err
}

func protectedDelivery() *channel.Delivery {
	return &channel.Delivery{
		NotificationID: uuid.New(),
		User:           &db.User{ID: uuid.New(), TelegramID: "1"},
	}
}

func TestProtectedSender_FailsFastWhenOpen(t *testing.T) {
	inner := &flakySender{err: errors.New("transport down")}
	cb := New(Config{Name: "telegram", MaxFailures: 2, RecoveryTimeout: time.Hour}, zap.NewNop())
	sender := NewProtectedSender(inner, cb, zap.NewNop())

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := sender.Send(ctx, protectedDelivery()); err == nil {
			t.Fatalf("send %d should fail", i)
		}
	}

	err := sender.Send(ctx, protectedDelivery())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("open circuit should not reach the inner sender, calls=%d", inner.calls)
	}
}

func TestProtectedSender_PassesThroughSuccess(t *testing.T) {
	inner := &flakySender{}
	cb := New(DefaultConfig("telegram"), zap.NewNop())
	sender := NewProtectedSender(inner, cb, zap.NewNop())

	if err := sender.Send(context.Background(), protectedDelivery()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sender.Channel() != db.ChannelTelegram {
		t.Errorf("channel should pass through, got %s", sender.Channel())
	}
}
