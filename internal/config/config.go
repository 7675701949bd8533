// Package config provides centralized configuration management for the Vibe pricing services.
// It uses envconfig for environment variable loading and validator for validation.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvironmentProduction is the production environment identifier
	EnvironmentProduction = "production"
)

// Config holds the complete application configuration.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Cache         CacheConfig         `envconfig:"CACHE"`
	Pricing       PricingConfig       `envconfig:"PRICING"`
	Sweeper       SweeperConfig       `envconfig:"SWEEPER"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`

	// RulesFile points at a YAML rule set. When set, rules are read from the file
	// instead of PostgreSQL and the database becomes optional (development mode).
	RulesFile string `envconfig:"RULES_FILE"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"vibe-pricing"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// EnvPrefix is the prefix shared by every environment variable read by Load.
const EnvPrefix = "VIBE"

// Load reads configuration from environment variables with the VIBE prefix.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs validation on the loaded configuration using go-playground/validator.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	// The database is the rule source unless a rules file is given,
	// in which case it only backs the durable cache tier (when configured).
	if c.RulesFile == "" || c.Database.IsConfigured() {
		if err := c.Database.Validate(c.App.Environment); err != nil {
			return err
		}
	}

	if c.Cache.RedisEnabled {
		if err := c.Redis.Validate(c.App.Environment); err != nil {
			return err
		}
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if err := c.Pricing.Validate(); err != nil {
		return err
	}

	if err := c.Sweeper.Validate(); err != nil {
		return err
	}

	if err := c.Observability.Validate(); err != nil {
		return err
	}

	return nil
}

// LogConfig logs the current configuration (without sensitive data).
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.String("app_name", c.App.Name),
		slog.String("version", c.App.Version),
		slog.String("environment", c.App.Environment),
		slog.String("log_level", c.App.LogLevel),
		slog.String("log_format", c.App.LogFormat),
		slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		slog.String("observability_port", c.Observability.Port),
		slog.Bool("db_configured", c.Database.IsConfigured()),
		slog.Bool("redis_enabled", c.Cache.RedisEnabled),
		slog.Bool("durable_tier_enabled", c.Cache.DurableEnabled && c.Database.IsConfigured()),
		slog.String("rules_file", c.RulesFile),
		slog.String("apply_mode", c.Pricing.ApplyMode),
		slog.String("gateway_id", c.Pricing.GatewayID),
		slog.Any("target_domains", c.Pricing.TargetDomains),
		slog.Int("currency_precision", int(c.Pricing.CurrencyPrecision)),
	)
}
