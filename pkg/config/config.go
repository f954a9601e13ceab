package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the Wagerdeck slip-builder bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Session   SessionConfig   `mapstructure:"session"`
	Betting   BettingConfig   `mapstructure:"betting"`
	Renderer  RendererConfig  `mapstructure:"renderer"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// BotConfig configures the Telegram connection.
type BotConfig struct {
	Token   string        `mapstructure:"token" validate:"required"`
	Mode    string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the HTTP server exposing /metrics and /healthz.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL bet ledger.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig configures the Redis connection shared by idempotency,
// rate limiting, the directory cache, and the job queue.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// SessionConfig controls builder session lifetimes.
type SessionConfig struct {
	BuildTTL  time.Duration `mapstructure:"build_ttl" validate:"gt=0"`
	BrowseTTL time.Duration `mapstructure:"browse_ttl" validate:"gt=0"`
}

// Destination is an eligible publish target channel.
type Destination struct {
	Label     string `mapstructure:"label" validate:"required"`
	ChannelID int64  `mapstructure:"channel_id" validate:"required"`
}

// BettingConfig carries the curated step-catalog inputs.
type BettingConfig struct {
	// Categories is the curated category list shown on the first step.
	// Capped at 24 so the fixed "Other" sentinel always fits.
	Categories []string `mapstructure:"categories" validate:"max=24,min=1"`

	// Destinations are the channels a finished slip may be published to.
	Destinations []Destination `mapstructure:"destinations" validate:"dive"`

	// StakeLadder is the fixed unit ladder offered on the stake step.
	StakeLadder []float64 `mapstructure:"stake_ladder" validate:"min=1"`

	// MaxSelectOptions caps selectable directory items per prompt, one slot
	// below the platform ceiling to leave room for the manual-entry sentinel.
	MaxSelectOptions int `mapstructure:"max_select_options"`

	// DraftTTL is how long an unconfirmed ledger draft survives before the
	// cleanup job tombstones it.
	DraftTTL time.Duration `mapstructure:"draft_ttl"`
}

// RendererConfig points at the external slip-rendering service.
type RendererConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig configures the per-user sliding windows. Start covers the
// session-opening commands (/bet, /parlay, /browse), which are limited more
// tightly than ordinary builder inputs.
type RateLimitConfig struct {
	PerUserLimit  int           `mapstructure:"per_user_limit"`
	PerUserWindow time.Duration `mapstructure:"per_user_window"`
	StartLimit    int           `mapstructure:"start_limit"`
	StartWindow   time.Duration `mapstructure:"start_window"`
	Whitelist     []int64       `mapstructure:"whitelist"`
}

// JobsConfig controls the asynq worker.
type JobsConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}
