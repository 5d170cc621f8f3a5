// Package config holds the runtime configuration for the complaint
// service. SLA thresholds live on the Config value and are injected
// into the lifecycle engine and the sweep, never read from globals, so
// tests and environments can override them.
package config

import (
	"os"
	"strconv"

	"civicpulse/backend/internal/models"
)

// Business defaults.
const (
	DefaultStalledAfterDays     = 60
	DefaultProgressDeadlineDays = 30
	DefaultProximityMaxAgeDays  = 180
	DefaultSweepLockTTLSeconds  = 300
	DefaultPort                 = "8080"
)

// Config is the immutable runtime configuration.
type Config struct {
	// StalledAfterDays is the inactivity threshold after which the sweep
	// declares a complaint stalled.
	StalledAfterDays int
	// ProgressDeadlineDays is the default SLA deadline applied when a
	// complaint carries no per-complaint override. This is the single
	// source of truth for the default; the per-complaint field is only
	// honored when explicitly set.
	ProgressDeadlineDays int
	// ProximityMaxAgeDays bounds how old a complaint may be and still
	// count as a duplicate candidate.
	ProximityMaxAgeDays int

	SweepLockTTLSeconds int

	DatabaseDSN    string
	RedisAddr      string
	RedisPassword  string
	JWTSecret      string
	TelegramToken  string
	TelegramChatID int64
	Port           string
}

// Default returns a Config with the business defaults and no
// infrastructure endpoints set.
func Default() Config {
	return Config{
		StalledAfterDays:     DefaultStalledAfterDays,
		ProgressDeadlineDays: DefaultProgressDeadlineDays,
		ProximityMaxAgeDays:  DefaultProximityMaxAgeDays,
		SweepLockTTLSeconds:  DefaultSweepLockTTLSeconds,
		Port:                 DefaultPort,
	}
}

// Load builds the Config from the environment. Call godotenv.Load
// first if a .env file should be honored.
func Load() Config {
	cfg := Default()

	cfg.DatabaseDSN = getEnv("DATABASE_DSN",
		"host=localhost user=user password=password dbname=civicpulsedb port=5432 sslmode=disable")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.JWTSecret = getEnv("JWT_SECRET", "dev-secret")
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Port = getEnv("PORT", DefaultPort)

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}
	if v := os.Getenv("STALLED_AFTER_DAYS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			cfg.StalledAfterDays = d
		}
	}
	if v := os.Getenv("DEFAULT_PROGRESS_DEADLINE_DAYS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			cfg.ProgressDeadlineDays = d
		}
	}

	return cfg
}

// DeadlineDays resolves the SLA deadline for a complaint: the
// per-complaint override when set, otherwise the configured default.
func (c Config) DeadlineDays(complaint *models.Complaint) int {
	if complaint.ProgressDeadlineDays > 0 {
		return complaint.ProgressDeadlineDays
	}
	return c.ProgressDeadlineDays
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
