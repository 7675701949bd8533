// Package logger builds the structured slog logger shared by the pricing services.
// Text output is meant for local development, JSON for everything shipped to a log pipeline.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
)

// New returns a logger writing to os.Stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger writing to w, configured from cfg.
// Every record carries the service name, version and environment.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
		// file:line is cheap enough outside production and saves a lot of grepping.
		AddSource: cfg.Environment != config.EnvironmentProduction,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// Component derives a child logger tagged with the emitting component.
// A nil parent falls back to slog.Default().
func Component(parent *slog.Logger, name string) *slog.Logger {
	if parent == nil {
		parent = slog.Default()
	}
	return parent.With(slog.String("component", name))
}

// parseLevel converts a level name to slog.Level, defaulting to INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
