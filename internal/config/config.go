package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration. Everything is injected through
// environment variables; cmd mains load .env files via godotenv first.
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	RabbitMQURL string
	RedisAddr   string
	RedisDB     int

	// Shared secret required by the settlement trigger endpoint
	CronSecret string

	// Flat premium in cents added to the current price for buy-now
	BuyNowPremiumCents int64

	// Bid endpoint rate limiting
	BidRateLimit  int
	BidRateWindow time.Duration

	// Settlement sweep cadence
	SettleInterval time.Duration

	// Outbox relay tuning
	EventsExchange string
	OutboxBatch    int
	OutboxInterval time.Duration

	// Maximum wait for the auction row lock
	LockTimeout time.Duration
}

// Load reads and validates configuration, falling back to defaults
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RabbitMQURL:    strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		CronSecret:     strings.TrimSpace(os.Getenv("CRON_SECRET")),
		EventsExchange: getEnv("EVENTS_EXCHANGE", "auction.events"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.RabbitMQURL == "" {
		return Config{}, fmt.Errorf("RABBITMQ_URL is not set")
	}
	if cfg.CronSecret == "" {
		return Config{}, fmt.Errorf("CRON_SECRET is not set")
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	premium, err := getEnvInt("BUY_NOW_PREMIUM_CENTS", 1000)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BUY_NOW_PREMIUM_CENTS: %w", err)
	}
	if premium < 0 {
		return Config{}, fmt.Errorf("BUY_NOW_PREMIUM_CENTS must be >= 0")
	}
	cfg.BuyNowPremiumCents = int64(premium)

	rateLimit, err := getEnvInt("BID_RATE_LIMIT", 30)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BID_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return Config{}, fmt.Errorf("BID_RATE_LIMIT must be > 0")
	}
	cfg.BidRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("BID_RATE_WINDOW_SEC", 60)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BID_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return Config{}, fmt.Errorf("BID_RATE_WINDOW_SEC must be > 0")
	}
	cfg.BidRateWindow = time.Duration(rateWindowSec) * time.Second

	settleSec, err := getEnvInt("SETTLE_INTERVAL_SEC", 30)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SETTLE_INTERVAL_SEC: %w", err)
	}
	if settleSec <= 0 {
		return Config{}, fmt.Errorf("SETTLE_INTERVAL_SEC must be > 0")
	}
	cfg.SettleInterval = time.Duration(settleSec) * time.Second

	batch, err := getEnvInt("OUTBOX_BATCH", 10)
	if err != nil {
		return Config{}, fmt.Errorf("invalid OUTBOX_BATCH: %w", err)
	}
	if batch <= 0 {
		return Config{}, fmt.Errorf("OUTBOX_BATCH must be > 0")
	}
	cfg.OutboxBatch = batch

	relayMs, err := getEnvInt("OUTBOX_INTERVAL_MS", 1000)
	if err != nil {
		return Config{}, fmt.Errorf("invalid OUTBOX_INTERVAL_MS: %w", err)
	}
	if relayMs <= 0 {
		return Config{}, fmt.Errorf("OUTBOX_INTERVAL_MS must be > 0")
	}
	cfg.OutboxInterval = time.Duration(relayMs) * time.Millisecond

	lockMs, err := getEnvInt("LOCK_TIMEOUT_MS", 3000)
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOCK_TIMEOUT_MS: %w", err)
	}
	if lockMs < 0 {
		return Config{}, fmt.Errorf("LOCK_TIMEOUT_MS must be >= 0")
	}
	cfg.LockTimeout = time.Duration(lockMs) * time.Millisecond

	return cfg, nil
}

// getEnv reads a string variable, returning the fallback when empty
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt reads an integer variable, returning the fallback when empty
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
