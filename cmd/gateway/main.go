package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/api"
	"github.com/amelnyk/slotly-notify/internal/channel"
	"github.com/amelnyk/slotly-notify/internal/circuitbreaker"
	"github.com/amelnyk/slotly-notify/internal/config"
	"github.com/amelnyk/slotly-notify/internal/db"
	"github.com/amelnyk/slotly-notify/internal/dispatch"
	"github.com/amelnyk/slotly-notify/internal/metrics"
	"github.com/amelnyk/slotly-notify/internal/observ"
	"github.com/amelnyk/slotly-notify/internal/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting slotly-notify gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	// Initialize database connection
	ctx := context.Background()
	dbConfig := db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	repo := db.NewRepository(database, logger)

	// Redis backs the push feed and rate limiting; it is required.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	feed := redis.NewFeed(redisClient, logger)
	rateLimiter := redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
		Limit:  cfg.RateLimitPerMinute,
		Window: time.Minute,
	})

	// Assemble channel senders. Optional transports soft-skip their channel
	// when not configured; each live sender sits behind a circuit breaker.
	var senders []channel.Sender

	if cfg.EmailEnabled() {
		emailSender, err := channel.NewEmailSender(ctx, channel.EmailConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.SESFromEmail,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create SES email sender: %w", err)
		}
		senders = append(senders, circuitbreaker.NewProtectedSender(
			emailSender,
			circuitbreaker.New(circuitbreaker.DefaultConfig("ses"), logger),
			logger,
		))
	} else {
		logger.Warn("email sending disabled, email channel will be skipped")
	}

	// No SMS vendor is wired yet; the log transport records what would have
	// been sent so the dispatch path stays exercised end to end.
	senders = append(senders, channel.NewSMSSender(channel.NewLogSMSTransport(logger), logger))

	if cfg.TelegramEnabled() {
		senders = append(senders, circuitbreaker.NewProtectedSender(
			channel.NewTelegramSender(cfg.TelegramBotToken, logger),
			circuitbreaker.New(circuitbreaker.DefaultConfig("telegram"), logger),
			logger,
		))
	} else {
		logger.Info("telegram bot token not configured, telegram channel disabled")
	}

	var pushTransport channel.PushTransport
	if cfg.PushTransportEnabled() {
		snsTransport, err := channel.NewSNSPushTransport(ctx, channel.SNSPushConfig{
			Region:   cfg.AWSRegion,
			TopicARN: cfg.PushTopicARN,
		}, logger)
		if err != nil {
			logger.Warn("SNS push transport unavailable, feed-only push", zap.Error(err))
		} else {
			pushTransport = snsTransport
		}
	}
	senders = append(senders, channel.NewPushSender(feed, pushTransport, logger))

	dispatcher := dispatch.New(repo, senders, dispatch.Config{
		BroadcastBatchSize: cfg.BroadcastBatchSize,
	}, logger)

	logger.Info("dispatcher initialized",
		zap.Bool("email_enabled", cfg.EmailEnabled()),
		zap.Bool("telegram_enabled", cfg.TelegramEnabled()),
		zap.Bool("push_transport_enabled", pushTransport != nil),
	)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	handler := api.NewHandler(logger, dispatcher)
	handler.AddHealthCheck("postgres", database.Health)
	handler.AddHealthCheck("redis", redisClient.Ping)

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.IPKeyFunc))

		r.Post("/notifications", handler.CreateNotification)
		r.Post("/notifications/bulk", handler.CreateBulkNotifications)
		r.Post("/notifications/broadcast", handler.BroadcastNotification)
		r.Post("/notifications/{id}/read", handler.MarkAsRead)

		r.Post("/bookings/{id}/notify", handler.NotifyBooking)

		r.Get("/users/{id}/notifications", handler.ListUserNotifications)
		r.Get("/users/{id}/notifications/unread-count", handler.UnreadCount)
		r.Post("/users/{id}/notifications/read-all", handler.MarkAllAsRead)
	})

	// Health check
	r.Get("/health", handler.Health)

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 10 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
