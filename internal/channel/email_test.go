package channel

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/amelnyk/slotly-notify/internal/db"
)

func TestRenderEmailHTML(t *testing.T) {
	d := &Delivery{
		NotificationID: uuid.New(),
		User: &db.User{
			ID:        uuid.New(),
			FirstName: "Olena",
			Email:     "olena@example.com",
		},
		Title:        "Booking Confirmed",
		EmailSubject: "Booking Confirmed",
		EmailBody:    "Your booking for Haircut is confirmed",
		Details: map[string]string{
			"service": "Haircut",
			"date":    "2026-09-01 14:00",
		},
	}

	html, err := renderEmailHTML(d)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, want := range []string{
		"Booking Confirmed",
		"Hello Olena,",
		"Your booking for Haircut is confirmed",
		"Haircut",
		"2026-09-01 14:00",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestRenderEmailHTML_EscapesContent(t *testing.T) {
	d := &Delivery{
		NotificationID: uuid.New(),
		User:           &db.User{ID: uuid.New()},
		Title:          "<script>alert(1)</script>",
		EmailBody:      "plain",
	}

	html, err := renderEmailHTML(d)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if strings.Contains(html, "<script>") {
		t.Error("title was not escaped")
	}
}

func TestRenderEmailHTML_NoDetailsNoTable(t *testing.T) {
	d := &Delivery{
		NotificationID: uuid.New(),
		User:           &db.User{ID: uuid.New()},
		Title:          "Title",
		EmailBody:      "Body",
	}

	html, err := renderEmailHTML(d)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if strings.Contains(html, "<table") {
		t.Error("detail table rendered without details")
	}
	if !strings.Contains(html, "Hello,") {
		t.Error("generic greeting missing for user without first name")
	}
}
