package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the notification service.
// Optional transports (SES, Telegram, SNS push) are queried through the
// capability methods below instead of module-level flags, so the dispatcher
// never has to guess what was initialized.
type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (push feed + rate limiting)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Email (AWS SES)
	AWSRegion    string
	SESFromEmail string
	EmailSending bool // off switch for environments without SES access

	// Telegram Bot API
	TelegramBotToken string

	// Live push (optional, AWS SNS topic publish)
	PushTopicARN string

	// Broadcast batching
	BroadcastBatchSize int

	// Rate limiting for the HTTP surface
	RateLimitPerMinute int
}

// Load reads configuration from a .env file (if present) and environment
// variables, with development defaults.
func Load() (*Config, error) {
	// .env is optional; real env vars always win.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "slotly",
		DBPassword: "",
		DBName:     "slotly_notify",
		DBSSLMode:  "disable",

		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		AWSRegion:    "eu-central-1",
		SESFromEmail: "noreply@slotly.local",
		EmailSending: true,

		BroadcastBatchSize: 100,
		RateLimitPerMinute: 100,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}

	if v := os.Getenv("EMAIL_SENDING"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EMAIL_SENDING: %w", err)
		}
		cfg.EmailSending = enabled
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramBotToken = token
	}

	if arn := os.Getenv("PUSH_TOPIC_ARN"); arn != "" {
		cfg.PushTopicARN = arn
	}

	if size := os.Getenv("BROADCAST_BATCH_SIZE"); size != "" {
		s, err := strconv.Atoi(size)
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid BROADCAST_BATCH_SIZE: %q", size)
		}
		cfg.BroadcastBatchSize = s
	}

	if limit := os.Getenv("RATE_LIMIT_PER_MINUTE"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMinute = l
	}

	return cfg, nil
}

// EmailEnabled reports whether outbound email should be attempted at all.
func (c *Config) EmailEnabled() bool {
	return c.EmailSending && c.SESFromEmail != ""
}

// TelegramEnabled reports whether a bot token is configured. Absence is a
// soft skip for the telegram channel, never an error.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// PushTransportEnabled reports whether the optional live push transport is
// configured. The Redis feed write happens regardless.
func (c *Config) PushTransportEnabled() bool {
	return c.PushTopicARN != ""
}
