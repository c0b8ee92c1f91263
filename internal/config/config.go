package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime knob, sourced from environment variables.
// cmd/bot loads a .env file first, so local runs work without exporting
// anything by hand.
type Config struct {
	BotToken    string
	DatabaseURL string
	RedisURL    string
	RedisDB     int

	WebhookAddr       string
	VoteWebhookSecret string
	AdminJWTSecret    string
	MetricsAddr       string

	AdminID int64

	// VoteCooldown is the minimum gap between rewarded votes per user.
	VoteCooldown time.Duration
	// NetWorthEvery is the recurrence of the net-worth refresh job.
	NetWorthEvery time.Duration
	// NetWorthStale is how long a user must be inactive before the
	// refresher considers their net worth for recomputation.
	NetWorthStale time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		BotToken:          mustEnv("BOT_TOKEN"),
		DatabaseURL:       mustEnv("DATABASE_URL"),
		RedisURL:          envOr("REDIS_URL", "localhost:6379"),
		RedisDB:           int(envInt("REDIS_DB", 0)),
		WebhookAddr:       envOr("WEBHOOK_ADDR", ":5000"),
		VoteWebhookSecret: mustEnv("VOTE_WEBHOOK_SECRET"),
		AdminJWTSecret:    envOr("ADMIN_JWT_SECRET", ""),
		MetricsAddr:       envOr("METRICS_ADDR", ":9091"),
		AdminID:           envInt("ADMIN_ID", 0),
		VoteCooldown:      envDuration("VOTE_COOLDOWN", 7*time.Hour),
		NetWorthEvery:     envDuration("NETWORTH_EVERY", 7*24*time.Hour),
		NetWorthStale:     envDuration("NETWORTH_STALE", 7*24*time.Hour),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.VoteWebhookSecret == "" {
		return nil, fmt.Errorf("VOTE_WEBHOOK_SECRET is required")
	}

	return cfg, nil
}

func mustEnv(key string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		log.Printf("config: missing env %s", key)
	}
	return val
}

func envOr(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func envInt(key string, def int64) int64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		log.Printf("config: bad int for %s: %q, using %d", key, val, def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("config: bad duration for %s: %q, using %s", key, val, def)
		return def
	}
	return d
}
