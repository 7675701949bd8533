package logger

import (
	"context"
	"log/slog"
)

// contextKey is unexported so no other package can collide with it.
type contextKey struct{}

// WithContext returns a copy of ctx carrying logger.
// Pricing sessions use it to attach a session-scoped logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default() when there is none.
// It never returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
