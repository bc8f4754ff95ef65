// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Storage drivers understood by the server.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the persistence layer: memory or postgres.
	StorageDriver string `koanf:"storage_driver"`

	// DatabaseURL is the pgx connection string used by the postgres driver.
	DatabaseURL string `koanf:"database_url"`

	DBConnectTimeoutMS int `koanf:"db_connect_timeout_ms"`

	// SettleTimeoutMS bounds a single createMatch/removeMatch transaction.
	SettleTimeoutMS int `koanf:"settle_timeout_ms"`

	// MaxLeaderboardLimit caps GET /seasons/{id}/standings?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DefaultInitialScore and DefaultKFactor seed elo seasons that omit them.
	DefaultInitialScore int `koanf:"default_initial_score"`
	DefaultKFactor      int `koanf:"default_k_factor"`

	// IdempotencyCacheSize bounds the number of remembered Idempotency-Key values.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	AchievementQueueSize int `koanf:"achievement_queue_size"`
	AchievementWorkers   int `koanf:"achievement_workers"`

	// CORSAllowedOrigins lists origins accepted by the CORS middleware.
	// From the environment it is a comma separated list.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":8080",
		StorageDriver:        DriverMemory,
		DBConnectTimeoutMS:   5000,
		SettleTimeoutMS:      5000,
		MaxLeaderboardLimit:  1000,
		DefaultInitialScore:  1200,
		DefaultKFactor:       32,
		IdempotencyCacheSize: 10_000,
		AchievementQueueSize: 10_000,
		AchievementWorkers:   runtime.NumCPU(),
		CORSAllowedOrigins:   []string{"*"},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.StorageDriver != DriverMemory && c.StorageDriver != DriverPostgres:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver == DriverPostgres && c.DatabaseURL == "":
		return fmt.Errorf("%w: database_url is required for the postgres driver", ErrInvalidConfig)
	case c.SettleTimeoutMS <= 0:
		return fmt.Errorf("%w: settle_timeout_ms must be positive", ErrInvalidConfig)
	case c.DBConnectTimeoutMS <= 0:
		return fmt.Errorf("%w: db_connect_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.DefaultInitialScore < 0:
		return fmt.Errorf("%w: default_initial_score must not be negative", ErrInvalidConfig)
	case c.DefaultKFactor <= 0:
		return fmt.Errorf("%w: default_k_factor must be positive", ErrInvalidConfig)
	case c.IdempotencyCacheSize <= 0:
		return fmt.Errorf("%w: idempotency_cache_size must be positive", ErrInvalidConfig)
	case c.AchievementQueueSize <= 0:
		return fmt.Errorf("%w: achievement_queue_size must be positive", ErrInvalidConfig)
	case c.AchievementWorkers <= 0:
		return fmt.Errorf("%w: achievement_workers must be positive", ErrInvalidConfig)
	}
	return nil
}

// SettleTimeout is SettleTimeoutMS as a duration.
func (c *Config) SettleTimeout() time.Duration {
	return time.Duration(c.SettleTimeoutMS) * time.Millisecond
}

// DBConnectTimeout is DBConnectTimeoutMS as a duration.
func (c *Config) DBConnectTimeout() time.Duration {
	return time.Duration(c.DBConnectTimeoutMS) * time.Millisecond
}
