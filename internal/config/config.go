// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete service configuration
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Fitting  FittingConfig  `mapstructure:"fitting"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServiceConfig holds the fit-cycle scheduling and alerting behavior
type ServiceConfig struct {
	FitInterval time.Duration `mapstructure:"fit_interval"`
	// Horizon is the number of future periods every retention curve is
	// projected to.
	Horizon int `mapstructure:"horizon"`
	// AlertThreshold flags datasets whose projected retention at the horizon
	// falls below this fraction. 0 disables degradation alerts.
	AlertThreshold float64 `mapstructure:"alert_threshold"`
}

// FittingConfig holds the maximum-likelihood estimation settings
type FittingConfig struct {
	// Models lists the survival models fitted each cycle: "sbg", "bdw".
	Models []string `mapstructure:"models"`
	// Method overrides the per-model default optimization method.
	Method        string `mapstructure:"method"`
	MaxRetries    int    `mapstructure:"max_retries"`
	MaxIterations int    `mapstructure:"max_iterations"`
	// Seed makes fit runs reproducible; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`
}

// IngestConfig holds the cohort CSV ingestion settings
type IngestConfig struct {
	// Dir is scanned for *.csv cohort files on startup; empty disables it.
	Dir string `mapstructure:"dir"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxFits int    `mapstructure:"max_fits"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("RETENTIOND")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("service.fit_interval", "24h")
	v.SetDefault("service.horizon", 52)
	v.SetDefault("service.alert_threshold", 0.0) // 0 = no degradation alerts

	v.SetDefault("fitting.models", []string{"sbg", "bdw"})
	v.SetDefault("fitting.method", "") // per-model default
	v.SetDefault("fitting.max_retries", 8)
	v.SetDefault("fitting.max_iterations", 2000)
	v.SetDefault("fitting.seed", 0)

	v.SetDefault("ingest.dir", "")

	v.SetDefault("storage.db_path", "./data/retentiond.db")
	v.SetDefault("storage.max_fits", 1000)

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Service.FitInterval < 1*time.Minute {
		return fmt.Errorf("service.fit_interval must be at least 1 minute")
	}
	if c.Service.Horizon < 1 {
		return fmt.Errorf("service.horizon must be at least 1")
	}
	if c.Service.AlertThreshold < 0.0 || c.Service.AlertThreshold > 1.0 {
		return fmt.Errorf("service.alert_threshold must be between 0.0 and 1.0")
	}

	if len(c.Fitting.Models) == 0 {
		return fmt.Errorf("fitting.models must name at least one model")
	}
	for _, m := range c.Fitting.Models {
		if m != "sbg" && m != "bdw" {
			return fmt.Errorf("fitting.models contains unknown model %q (want sbg or bdw)", m)
		}
	}
	if c.Fitting.MaxRetries < 0 {
		return fmt.Errorf("fitting.max_retries must not be negative")
	}
	if c.Fitting.MaxIterations < 1 {
		return fmt.Errorf("fitting.max_iterations must be at least 1")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxFits < 1 {
		return fmt.Errorf("storage.max_fits must be at least 1")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
