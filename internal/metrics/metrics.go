package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotly_notify_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotly_notify_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	notificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotly_notify_notifications_dispatched_total",
			Help: "Total notifications dispatched by type",
		},
		[]string{"type"},
	)

	channelAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotly_notify_channel_attempts_total",
			Help: "Channel delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	channelSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotly_notify_channel_skips_total",
			Help: "Channels skipped before sending, by channel and reason",
		},
		[]string{"channel", "reason"},
	)

	channelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotly_notify_channel_send_duration_seconds",
			Help:    "Time spent in a single channel send",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"channel"},
	)

	broadcastBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotly_notify_broadcast_batches_total",
			Help: "User batches fetched during broadcast dispatch",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotly_notify_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"client"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDispatch records one dispatched notification
func RecordDispatch(notifType string) {
	notificationsDispatched.WithLabelValues(notifType).Inc()
}

// RecordChannelAttempt records a channel delivery result ("sent" or "failed")
func RecordChannelAttempt(channel, result string) {
	channelAttempts.WithLabelValues(channel, result).Inc()
}

// RecordChannelSkip records a channel skipped before sending
func RecordChannelSkip(channel, reason string) {
	channelSkips.WithLabelValues(channel, reason).Inc()
}

// RecordChannelSendDuration records the latency of one channel send
func RecordChannelSendDuration(channel string, duration time.Duration) {
	channelSendDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordBroadcastBatch records one fetched broadcast batch
func RecordBroadcastBatch() {
	broadcastBatches.Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(client string) {
	rateLimitRejections.WithLabelValues(client).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
