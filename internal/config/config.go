package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Run modes.
const (
	ModeServer   = "server"
	ModeWorker   = "worker"
	ModeEmbedded = "embedded"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Env         string
	Port        string
	Mode        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	LogFormat   string

	// Provider chains
	ProvidersFile string
	StubProviders bool
	EncryptionKey string

	// Generation
	PlaceholderTimeout  time.Duration
	EventsTTL           time.Duration
	EventsLookaheadDays int

	// Background work
	DeactivateSchedule string
	ScheduleTimezone   string
	WorkerConcurrency  int
	ReadyChannel       string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Env:         getEnvWithDefault("ENV", "development"),
		Port:        getEnvWithDefault("PORT", "8080"),
		Mode:        strings.ToLower(getEnvWithDefault("MODE", ModeEmbedded)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvWithDefault("LOG_FORMAT", "text"),

		ProvidersFile: os.Getenv("PROVIDERS_FILE"),
		StubProviders: getBoolWithDefault("STUB_PROVIDERS", false),
		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),

		PlaceholderTimeout:  getDurationWithDefault("PLACEHOLDER_TIMEOUT", 2*time.Minute),
		EventsTTL:           getDurationWithDefault("EVENTS_TTL", 4*time.Hour),
		EventsLookaheadDays: getIntWithDefault("EVENTS_LOOKAHEAD_DAYS", 7),

		DeactivateSchedule: getEnvWithDefault("DEACTIVATE_SCHEDULE", "15 3 * * *"),
		ScheduleTimezone:   getEnvWithDefault("SCHEDULE_TIMEZONE", "UTC"),
		WorkerConcurrency:  getIntWithDefault("WORKER_CONCURRENCY", 5),
		ReadyChannel:       getEnvWithDefault("READY_CHANNEL", "briefing:ready"),
	}

	switch cfg.Mode {
	case ModeServer, ModeWorker, ModeEmbedded:
	default:
		slog.Warn("Unknown MODE, using embedded", "mode", cfg.Mode)
		cfg.Mode = ModeEmbedded
	}

	// Without a chain file the only usable providers are stubs.
	if cfg.ProvidersFile == "" && !cfg.StubProviders {
		slog.Warn("PROVIDERS_FILE not set, falling back to stub providers")
		cfg.StubProviders = true
	}

	return cfg
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Invalid boolean in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return b
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", value, "default", defaultValue.String())
		return defaultValue
	}
	return d
}
