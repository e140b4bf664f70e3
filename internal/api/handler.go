package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
	"github.com/amelnyk/slotly-notify/internal/dispatch"
)

// Dispatcher is the slice of the dispatch service the HTTP layer uses.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID uuid.UUID, p dispatch.Payload) (*db.Notification, error)
	SendBulk(ctx context.Context, userIDs []uuid.UUID, p dispatch.Payload)
	SendToAllUsers(ctx context.Context, p dispatch.Payload) error
	SendBookingNotification(ctx context.Context, bookingID uuid.UUID, notifType, title, message string) error
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	ListUserNotifications(ctx context.Context, userID uuid.UUID, filter db.NotificationFilter) *db.NotificationPage
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationRequest is the body of the dispatch endpoints. Title and
// Message accept catalog keys or literal text; Variables feeds placeholder
// interpolation.
type NotificationRequest struct {
	UserID        string            `json:"user_id"`
	Type          string            `json:"type"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	Data          map[string]any    `json:"data,omitempty"`
	Variables     map[string]string `json:"variables,omitempty"`
	EmailTemplate string            `json:"email_template,omitempty"`
	SMSTemplate   string            `json:"sms_template,omitempty"`
	Priority      string            `json:"priority,omitempty"`
}

// BulkRequest dispatches one payload to many users.
type BulkRequest struct {
	UserIDs []string `json:"user_ids"`
	NotificationRequest
}

// BookingNotifyRequest triggers the booking convenience path.
type BookingNotifyRequest struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger       *zap.Logger
	dispatcher   Dispatcher
	healthChecks map[string]func(context.Context) error
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, dispatcher Dispatcher) *Handler {
	return &Handler{
		logger:       logger,
		dispatcher:   dispatcher,
		healthChecks: make(map[string]func(context.Context) error),
	}
}

// AddHealthCheck registers a named dependency check run by GET /health.
func (h *Handler) AddHealthCheck(name string, check func(context.Context) error) {
	h.healthChecks[name] = check
}

func (r *NotificationRequest) payload() dispatch.Payload {
	return dispatch.Payload{
		Type:          r.Type,
		Title:         r.Title,
		Message:       r.Message,
		Data:          r.Data,
		Variables:     r.Variables,
		EmailTemplate: r.EmailTemplate,
		SMSTemplate:   r.SMSTemplate,
		Priority:      r.Priority,
	}
}

// validate checks the payload fields shared by all dispatch endpoints.
func (r *NotificationRequest) validate() (string, string) {
	if r.Type == "" {
		return "Missing type", "type is required"
	}
	if r.Title == "" {
		return "Missing title", "title is required"
	}
	if r.Priority != "" && !db.ValidPriority(r.Priority) {
		return "Invalid priority", "priority must be one of: LOW, NORMAL, HIGH, URGENT"
	}
	return "", ""
}

// CreateNotification handles POST /v1/notifications
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing user_id", "user_id is required")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a valid UUID")
		return
	}
	if title, detail := req.validate(); title != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", title, detail)
		return
	}

	notif, err := h.dispatcher.Dispatch(ctx, userID, req.payload())
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "User not found", "")
			return
		}
		h.logger.Error("failed to dispatch notification",
			zap.Error(err),
			zap.String("user_id", req.UserID),
			zap.String("type", req.Type),
		)
		h.writeError(w, http.StatusInternalServerError, "dispatch_error", "Failed to dispatch notification", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(notif)
}

// CreateBulkNotifications handles POST /v1/notifications/bulk
func (h *Handler) CreateBulkNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if len(req.UserIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing user_ids", "user_ids must be a non-empty array")
		return
	}
	if title, detail := req.validate(); title != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", title, detail)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id", "every entry of user_ids must be a valid UUID")
			return
		}
		ids = append(ids, id)
	}

	h.dispatcher.SendBulk(ctx, ids, req.payload())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     "dispatched",
		"recipients": len(ids),
	})
}

// BroadcastNotification handles POST /v1/notifications/broadcast
func (h *Handler) BroadcastNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if title, detail := req.validate(); title != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", title, detail)
		return
	}

	if err := h.dispatcher.SendToAllUsers(ctx, req.payload()); err != nil {
		h.logger.Error("broadcast failed", zap.Error(err), zap.String("type", req.Type))
		h.writeError(w, http.StatusInternalServerError, "dispatch_error", "Broadcast failed", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "dispatched"})
}

// NotifyBooking handles POST /v1/bookings/{id}/notify
func (h *Handler) NotifyBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid booking ID", "ID must be a valid UUID")
		return
	}

	var req BookingNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.Type == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing type", "type is required")
		return
	}

	if err := h.dispatcher.SendBookingNotification(ctx, bookingID, req.Type, req.Title, req.Message); err != nil {
		if errors.Is(err, db.ErrBookingNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Booking not found", "")
			return
		}
		h.logger.Error("booking notification failed",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("type", req.Type),
		)
		h.writeError(w, http.StatusInternalServerError, "dispatch_error", "Failed to notify booking parties", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "dispatched"})
}

// ListUserNotifications handles GET /v1/users/{id}/notifications
func (h *Handler) ListUserNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user ID", "ID must be a valid UUID")
		return
	}

	filter := db.NotificationFilter{
		Type: r.URL.Query().Get("type"),
	}

	if unreadStr := r.URL.Query().Get("unread"); unreadStr != "" {
		unread, err := strconv.ParseBool(unreadStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid unread filter", "unread must be true or false")
			return
		}
		filter.Unread = &unread
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			filter.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	page := h.dispatcher.ListUserNotifications(ctx, userID, filter)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(page)
}

// UnreadCount handles GET /v1/users/{id}/notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user ID", "ID must be a valid UUID")
		return
	}

	count, err := h.dispatcher.UnreadCount(ctx, userID)
	if err != nil {
		h.logger.Error("failed to count unread notifications",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to count unread notifications", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int{"count": count})
}

// MarkAsRead handles POST /v1/notifications/{id}/read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	notifID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notification ID", "ID must be a valid UUID")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a valid UUID")
		return
	}

	if err := h.dispatcher.MarkAsRead(ctx, notifID, userID); err != nil {
		if errors.Is(err, db.ErrNotificationNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
			return
		}
		h.logger.Error("failed to mark notification read",
			zap.Error(err),
			zap.String("notification_id", notifID.String()),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to mark notification read", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":     notifID.String(),
		"status": "read",
	})
}

// MarkAllAsRead handles POST /v1/users/{id}/notifications/read-all
func (h *Handler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user ID", "ID must be a valid UUID")
		return
	}

	marked, err := h.dispatcher.MarkAllAsRead(ctx, userID)
	if err != nil {
		h.logger.Error("failed to mark all notifications read",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to mark notifications read", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int64{"marked": marked})
}

// Health handles GET /health. Each registered dependency check gets a
// short deadline; any failure flips the overall status to 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.healthChecks))
	for name, check := range h.healthChecks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"checks": checks}
	if status == http.StatusOK {
		body["status"] = "ok"
	} else {
		body["status"] = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
