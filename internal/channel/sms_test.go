package channel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
)

type fakeSMSTransport struct {
	to      string
	message string
	err     error
}

func (f *fakeSMSTransport) Send(_ context.Context, to, message string) error {
	f.to = to
	f.message = message
	return f.err
}

func smsDelivery() *Delivery {
	return &Delivery{
		NotificationID: uuid.New(),
		User: &db.User{
			ID:          uuid.New(),
			FirstName:   "Olena",
			PhoneNumber: "+380501234567",
		},
		Title:   "Booking Confirmed",
		Message: "Your booking is confirmed",
		SMSBody: "Your booking for Haircut is confirmed",
		Details: map[string]string{
			"service": "Haircut",
			"date":    "2026-09-01 14:00",
		},
	}
}

func TestSMSSender_Send(t *testing.T) {
	transport := &fakeSMSTransport{}
	sender := NewSMSSender(transport, zap.NewNop())

	if err := sender.Send(context.Background(), smsDelivery()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if transport.to != "+380501234567" {
		t.Errorf("unexpected recipient: %s", transport.to)
	}
	for _, want := range []string{
		"Booking Confirmed",
		"Hi Olena,",
		"Your booking for Haircut is confirmed",
		"Service: Haircut",
		"Date: 2026-09-01 14:00",
	} {
		if !strings.Contains(transport.message, want) {
			t.Errorf("message missing %q:\n%s", want, transport.message)
		}
	}
}

func TestSMSSender_TransportError(t *testing.T) {
	transport := &fakeSMSTransport{err: errors.New("provider down")}
	sender := NewSMSSender(transport, zap.NewNop())

	if err := sender.Send(context.Background(), smsDelivery()); err == nil {
		t.Error("expected transport error to propagate")
	}
}

func TestSMSSender_MissingPhone(t *testing.T) {
	transport := &fakeSMSTransport{}
	sender := NewSMSSender(transport, zap.NewNop())

	d := smsDelivery()
	d.User.PhoneNumber = ""

	if err := sender.Send(context.Background(), d); err == nil {
		t.Error("expected error for missing phone number")
	}
	if transport.to != "" {
		t.Error("transport should not have been called")
	}
}

func TestComposeSMSText_NoDetails(t *testing.T) {
	d := smsDelivery()
	d.Details = nil
	d.User.FirstName = ""

	got := ComposeSMSText(d)
	want := "Booking Confirmed\nYour booking for Haircut is confirmed"
	if got != want {
		t.Errorf("ComposeSMSText = %q, want %q", got, want)
	}
}

func TestLogSMSTransport(t *testing.T) {
	transport := NewLogSMSTransport(zap.NewNop())
	if err := transport.Send(context.Background(), "+380501234567", "hi"); err != nil {
		t.Errorf("log transport should never fail: %v", err)
	}
}
