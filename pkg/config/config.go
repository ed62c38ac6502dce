// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/retry"
	"github.com/chris/stars-ledger/pkg/storage/dynamodb"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds every setting read from the environment.
type Config struct {
	HTTPPort string
	LogLevel slog.Level

	PaymentMode        models.IssuanceMode
	BotToken           string
	WebhookSecret      string
	TelegramAPIBaseURL string

	AdminJWTSecret      string
	AdminIDs            []string
	AdminInitDataMaxAge time.Duration

	StorageBackend string
	Tables         dynamodb.Tables

	SQSQueueURL          string
	WebsocketAPIEndpoint string

	Retry       retry.Policy
	StaleAfter  time.Duration
	AuditNodeID int64
}

// Load reads .env, if present, and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return LoadFrom(os.Getenv)
}

// LoadFrom builds a Config from getenv.
func LoadFrom(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		HTTPPort:           env("HTTP_PORT", "8080"),
		BotToken:           env("TELEGRAM_BOT_TOKEN", ""),
		WebhookSecret:      env("TELEGRAM_WEBHOOK_SECRET", ""),
		TelegramAPIBaseURL: env("TELEGRAM_API_BASE_URL", ""),
		AdminJWTSecret:     env("ADMIN_JWT_SECRET", ""),
		AdminIDs:           splitList(env("ADMIN_TELEGRAM_IDS", "")),
		StorageBackend:     env("STORAGE_BACKEND", BackendDynamoDB),
		Tables: dynamodb.Tables{
			Accounts:    env("DYNAMODB_ACCOUNTS_TABLE_NAME", ""),
			Intents:     env("DYNAMODB_INTENTS_TABLE_NAME", ""),
			References:  env("DYNAMODB_REFERENCES_TABLE_NAME", ""),
			Counters:    env("DYNAMODB_COUNTERS_TABLE_NAME", ""),
			Audit:       env("DYNAMODB_AUDIT_TABLE_NAME", ""),
			Connections: env("DYNAMODB_WEBSOCKET_CONNECTIONS_TABLE_NAME", ""),
		},
		SQSQueueURL:          env("SQS_QUEUE_URL", ""),
		WebsocketAPIEndpoint: env("WEBSOCKET_API_ENDPOINT", ""),
		Retry:                retry.DefaultPolicy(),
	}

	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "INFO"))); err != nil {
		fail("LOG_LEVEL: %v", err)
	}

	// Without a bot token there is no way to issue real invoices.
	defaultMode := models.SIMULATED
	if cfg.BotToken != "" {
		defaultMode = models.LIVE
	}
	cfg.PaymentMode = models.IssuanceMode(strings.ToLower(env("PAYMENT_MODE", string(defaultMode))))
	switch cfg.PaymentMode {
	case models.LIVE:
		if cfg.BotToken == "" {
			fail("PAYMENT_MODE=live requires TELEGRAM_BOT_TOKEN")
		}
		// Without the secret anyone could post a forged successful_payment.
		if cfg.WebhookSecret == "" {
			fail("PAYMENT_MODE=live requires TELEGRAM_WEBHOOK_SECRET")
		}
	case models.SIMULATED:
	default:
		fail("PAYMENT_MODE must be live or simulated, got %q", cfg.PaymentMode)
	}

	switch cfg.StorageBackend {
	case BackendDynamoDB:
		for name, table := range map[string]string{
			"DYNAMODB_ACCOUNTS_TABLE_NAME":   cfg.Tables.Accounts,
			"DYNAMODB_INTENTS_TABLE_NAME":    cfg.Tables.Intents,
			"DYNAMODB_REFERENCES_TABLE_NAME": cfg.Tables.References,
			"DYNAMODB_COUNTERS_TABLE_NAME":   cfg.Tables.Counters,
			"DYNAMODB_AUDIT_TABLE_NAME":      cfg.Tables.Audit,
		} {
			if table == "" {
				fail("%s is not set", name)
			}
		}
	case BackendMemory:
	default:
		fail("STORAGE_BACKEND must be dynamodb or memory, got %q", cfg.StorageBackend)
	}

	intVar := func(key string, fallback int) int {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail("%s must be a non-negative integer, got %q", key, raw)
			return fallback
		}
		return n
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			fail("%s must be a positive duration, got %q", key, raw)
			return fallback
		}
		return d
	}

	cfg.Retry.Attempts = intVar("PROVIDER_RETRY_ATTEMPTS", cfg.Retry.Attempts)
	if cfg.Retry.Attempts < 1 {
		fail("PROVIDER_RETRY_ATTEMPTS must be at least 1")
	}
	cfg.Retry.BaseDelay = durationVar("PROVIDER_RETRY_BASE_DELAY", cfg.Retry.BaseDelay)
	cfg.Retry.MaxDelay = durationVar("PROVIDER_RETRY_MAX_DELAY", cfg.Retry.MaxDelay)
	cfg.Retry.Timeout = durationVar("PROVIDER_TIMEOUT", cfg.Retry.Timeout)
	cfg.StaleAfter = durationVar("PAYMENT_STALE_AFTER", 30*time.Minute)
	cfg.AdminInitDataMaxAge = durationVar("ADMIN_INIT_DATA_MAX_AGE", 24*time.Hour)

	nodeID := intVar("AUDIT_NODE_ID", 0)
	if nodeID > 1023 {
		fail("AUDIT_NODE_ID must be between 0 and 1023, got %d", nodeID)
	}
	cfg.AuditNodeID = int64(nodeID)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger returns a JSON logger at the configured level.
func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
