package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
	"github.com/amelnyk/slotly-notify/internal/dispatch"
)

// fakeDispatcher records calls and returns canned results.
type fakeDispatcher struct {
	dispatchErr error
	bookingErr  error
	markReadErr error
	countErr    error

	lastUserID  uuid.UUID
	lastPayload dispatch.Payload
	bulkIDs     []uuid.UUID
	broadcasts  int
	marked      int64
	unread      int
	page        *db.NotificationPage
}

func (f *fakeDispatcher) Dispatch(_ context.Context, userID uuid.UUID, p dispatch.Payload) (*db.Notification, error) {
	f.lastUserID = userID
	f.lastPayload = p
	if f.dispatchErr != nil {
		return nil, f.dispatchErr
	}
	return &db.Notification{ID: uuid.New(), UserID: userID, Type: p.Type, Title: p.Title, Priority: db.PriorityNormal}, nil
}

func (f *fakeDispatcher) SendBulk(_ context.Context, userIDs []uuid.UUID, p dispatch.Payload) {
	f.bulkIDs = userIDs
	f.lastPayload = p
}

func (f *fakeDispatcher) SendToAllUsers(_ context.Context, p dispatch.Payload) error {
	f.broadcasts++
	f.lastPayload = p
	return nil
}

func (f *fakeDispatcher) SendBookingNotification(_ context.Context, _ uuid.UUID, notifType, _, _ string) error {
	f.lastPayload = dispatch.Payload{Type: notifType}
	return f.bookingErr
}

func (f *fakeDispatcher) MarkAsRead(_ context.Context, _, _ uuid.UUID) error {
	return f.markReadErr
}

func (f *fakeDispatcher) MarkAllAsRead(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.marked, nil
}

func (f *fakeDispatcher) ListUserNotifications(_ context.Context, _ uuid.UUID, filter db.NotificationFilter) *db.NotificationPage {
	if f.page != nil {
		return f.page
	}
	return &db.NotificationPage{Items: []*db.Notification{}, Limit: filter.Limit, Offset: filter.Offset}
}

func (f *fakeDispatcher) UnreadCount(_ context.Context, _ uuid.UUID) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.unread, nil
}

func testRouter(d Dispatcher) chi.Router {
	h := NewHandler(zap.NewNop(), d)
	r := chi.NewRouter()
	r.Post("/v1/notifications", h.CreateNotification)
	r.Post("/v1/notifications/bulk", h.CreateBulkNotifications)
	r.Post("/v1/notifications/broadcast", h.BroadcastNotification)
	r.Post("/v1/notifications/{id}/read", h.MarkAsRead)
	r.Post("/v1/bookings/{id}/notify", h.NotifyBooking)
	r.Get("/v1/users/{id}/notifications", h.ListUserNotifications)
	r.Get("/v1/users/{id}/notifications/unread-count", h.UnreadCount)
	r.Post("/v1/users/{id}/notifications/read-all", h.MarkAllAsRead)
	r.Get("/health", h.Health)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateNotification(t *testing.T) {
	fake := &fakeDispatcher{}
	router := testRouter(fake)
	userID := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/v1/notifications", map[string]any{
		"user_id":   userID.String(),
		"type":      "BOOKING_CONFIRMED",
		"title":     "Booking Confirmed",
		"message":   "Your booking for {{service}} is confirmed",
		"variables": map[string]string{"service": "Haircut"},
		"priority":  "HIGH",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if fake.lastUserID != userID {
		t.Errorf("dispatcher got wrong user id: %s", fake.lastUserID)
	}
	if fake.lastPayload.Priority != "HIGH" {
		t.Errorf("priority not forwarded: %s", fake.lastPayload.Priority)
	}
	if fake.lastPayload.Variables["service"] != "Haircut" {
		t.Errorf("variables not forwarded: %v", fake.lastPayload.Variables)
	}

	var notif db.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &notif); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if notif.UserID != userID {
		t.Errorf("response user id mismatch: %s", notif.UserID)
	}
}

func TestCreateNotification_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing_user_id", map[string]any{"type": "SYSTEM", "title": "hi"}},
		{"bad_user_id", map[string]any{"user_id": "nope", "type": "SYSTEM", "title": "hi"}},
		{"missing_type", map[string]any{"user_id": uuid.NewString(), "title": "hi"}},
		{"missing_title", map[string]any{"user_id": uuid.NewString(), "type": "SYSTEM"}},
		{"bad_priority", map[string]any{"user_id": uuid.NewString(), "type": "SYSTEM", "title": "hi", "priority": "ASAP"}},
	}

	router := testRouter(&fakeDispatcher{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/v1/notifications", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("expected problem+json, got %s", ct)
			}
		})
	}
}

func TestCreateNotification_UnknownUser(t *testing.T) {
	fake := &fakeDispatcher{dispatchErr: db.ErrUserNotFound}
	router := testRouter(fake)

	rec := doJSON(t, router, http.MethodPost, "/v1/notifications", map[string]any{
		"user_id": uuid.NewString(),
		"type":    "SYSTEM",
		"title":   "hi",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCreateNotification_DispatchError(t *testing.T) {
	fake := &fakeDispatcher{dispatchErr: errors.New("db down")}
	router := testRouter(fake)

	rec := doJSON(t, router, http.MethodPost, "/v1/notifications", map[string]any{
		"user_id": uuid.NewString(),
		"type":    "SYSTEM",
		"title":   "hi",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestCreateBulkNotifications(t *testing.T) {
	fake := &fakeDispatcher{}
	router := testRouter(fake)

	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	rec := doJSON(t, router, http.MethodPost, "/v1/notifications/bulk", map[string]any{
		"user_ids": ids,
		"type":     "ANNOUNCEMENT",
		"title":    "News",
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(fake.bulkIDs) != 3 {
		t.Errorf("expected 3 recipients forwarded, got %d", len(fake.bulkIDs))
	}
}

func TestCreateBulkNotifications_EmptyIDs(t *testing.T) {
	router := testRouter(&fakeDispatcher{})

	rec := doJSON(t, router, http.MethodPost, "/v1/notifications/bulk", map[string]any{
		"user_ids": []string{},
		"type":     "ANNOUNCEMENT",
		"title":    "News",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestBroadcastNotification(t *testing.T) {
	fake := &fakeDispatcher{}
	router := testRouter(fake)

	rec := doJSON(t, router, http.MethodPost, "/v1/notifications/broadcast", map[string]any{
		"type":  "ANNOUNCEMENT",
		"title": "Maintenance window",
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if fake.broadcasts != 1 {
		t.Errorf("expected 1 broadcast, got %d", fake.broadcasts)
	}
}

func TestNotifyBooking(t *testing.T) {
	fake := &fakeDispatcher{}
	router := testRouter(fake)

	rec := doJSON(t, router, http.MethodPost, "/v1/bookings/"+uuid.NewString()+"/notify", map[string]any{
		"type": "BOOKING_CONFIRMED",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fake.lastPayload.Type != "BOOKING_CONFIRMED" {
		t.Errorf("type not forwarded: %s", fake.lastPayload.Type)
	}
}

func TestNotifyBooking_NotFound(t *testing.T) {
	fake := &fakeDispatcher{bookingErr: db.ErrBookingNotFound}
	router := testRouter(fake)

	rec := doJSON(t, router, http.MethodPost, "/v1/bookings/"+uuid.NewString()+"/notify", map[string]any{
		"type": "BOOKING_CONFIRMED",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListUserNotifications(t *testing.T) {
	fake := &fakeDispatcher{
		page: &db.NotificationPage{
			Items: []*db.Notification{
				{ID: uuid.New(), Type: "SYSTEM", Title: "hi"},
			},
			Total:  1,
			Limit:  20,
			Offset: 0,
		},
	}
	router := testRouter(fake)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+uuid.NewString()+"/notifications?unread=true&limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var page db.NotificationPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestListUserNotifications_BadUnreadFilter(t *testing.T) {
	router := testRouter(&fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+uuid.NewString()+"/notifications?unread=maybe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestUnreadCount(t *testing.T) {
	fake := &fakeDispatcher{unread: 7}
	router := testRouter(fake)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+uuid.NewString()+"/notifications/unread-count", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["count"] != 7 {
		t.Errorf("expected count 7, got %d", body["count"])
	}
}

func TestMarkAsRead(t *testing.T) {
	router := testRouter(&fakeDispatcher{})

	rec := doJSON(t, router, http.MethodPost, "/v1/notifications/"+uuid.NewString()+"/read", map[string]any{
		"user_id": uuid.NewString(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMarkAsRead_NotFound(t *testing.T) {
	fake := &fakeDispatcher{markReadErr: db.ErrNotificationNotFound}
	router := testRouter(fake)

	rec := doJSON(t, router, http.MethodPost, "/v1/notifications/"+uuid.NewString()+"/read", map[string]any{
		"user_id": uuid.NewString(),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMarkAllAsRead(t *testing.T) {
	fake := &fakeDispatcher{marked: 4}
	router := testRouter(fake)

	rec := doJSON(t, router, http.MethodPost, "/v1/users/"+uuid.NewString()+"/notifications/read-all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["marked"] != 4 {
		t.Errorf("expected 4 marked, got %d", body["marked"])
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(zap.NewNop(), &fakeDispatcher{})
	h.AddHealthCheck("postgres", func(context.Context) error { return nil })
	h.AddHealthCheck("redis", func(context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealth_Degraded(t *testing.T) {
	h := NewHandler(zap.NewNop(), &fakeDispatcher{})
	h.AddHealthCheck("postgres", func(context.Context) error { return nil })
	h.AddHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "degraded" || body.Checks["redis"] != "unhealthy" {
		t.Errorf("unexpected body: %+v", body)
	}
}
