// Package config loads steelworks settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the process-wide settings. Command-line flags override these
// values where both exist.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `env:"STEELWORKS_DB_PATH" envDefault:"steelworks.db"`

	// RedisAddr enables cross-process lot locking when set.
	RedisAddr string `env:"STEELWORKS_REDIS_ADDR"`

	// LockTTL bounds how long a crashed process can hold a Redis lot lock.
	LockTTL time.Duration `env:"STEELWORKS_LOCK_TTL" envDefault:"30s"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"STEELWORKS_LOG_LEVEL" envDefault:"info"`

	// OTelEndpoint is the OTLP/HTTP trace endpoint. Empty disables export.
	OTelEndpoint string `env:"STEELWORKS_OTEL_ENDPOINT"`

	// OTelEnabled turns export off even when an endpoint is set.
	OTelEnabled bool `env:"STEELWORKS_OTEL_ENABLED" envDefault:"true"`

	// OTelSampleRatio is the fraction of root traces kept, in [0, 1].
	OTelSampleRatio float64 `env:"STEELWORKS_OTEL_SAMPLE_RATIO" envDefault:"1"`

	// ServiceName tags exported spans.
	ServiceName string `env:"STEELWORKS_SERVICE_NAME" envDefault:"steelworks"`
}

// TracingEnabled reports whether spans should be exported.
func (c Config) TracingEnabled() bool {
	return c.OTelEnabled && c.OTelEndpoint != ""
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL <= 0 {
		return Config{}, fmt.Errorf("STEELWORKS_LOCK_TTL must be positive, got %s", cfg.LockTTL)
	}
	if cfg.OTelSampleRatio < 0 || cfg.OTelSampleRatio > 1 {
		return Config{}, fmt.Errorf("STEELWORKS_OTEL_SAMPLE_RATIO must be in [0, 1], got %g", cfg.OTelSampleRatio)
	}
	return cfg, nil
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}
