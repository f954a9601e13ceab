// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables,
// validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// missing env files are fine; real deployments use the environment
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// Watch re-reads the config file on change and hands the refreshed betting
// section to onChange. Only the curated catalog inputs are hot-reloadable;
// everything else requires a restart.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(BettingConfig)) {
	if v == nil || onChange == nil {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if log != nil {
			log.Info("config file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		}

		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			if log != nil {
				log.Error("failed to reload config", slog.Any("error", err))
			}
			return
		}

		onChange(cfg.Betting)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", 10*time.Second)

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("session.build_ttl", 1800*time.Second)
	v.SetDefault("session.browse_ttl", 300*time.Second)

	v.SetDefault("betting.stake_ladder", []float64{0.5, 1, 1.5, 2, 2.5, 3})
	v.SetDefault("betting.max_select_options", 24)
	v.SetDefault("betting.draft_ttl", 24*time.Hour)

	v.SetDefault("renderer.timeout", 5*time.Second)

	v.SetDefault("rate_limit.per_user_limit", 20)
	v.SetDefault("rate_limit.per_user_window", time.Minute)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.concurrency", 5)
	v.SetDefault("jobs.queues", map[string]int{"default": 5, "low": 1})
}
