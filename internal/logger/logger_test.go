package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("Should emit JSON lines carrying the service identity", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{
			Name:        "vibe-pricing",
			Version:     "1.2.3",
			Environment: config.EnvironmentProduction,
			LogLevel:    "info",
			LogFormat:   "json",
		}, &buf)

		log.Info("index compiled", slog.Int("rules", 4))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "index compiled", line["msg"])
		assert.Equal(t, "vibe-pricing", line["service"])
		assert.Equal(t, "1.2.3", line["version"])
		assert.Equal(t, "production", line["env"])
		assert.EqualValues(t, 4, line["rules"])
		assert.NotContains(t, line, "source", "source location is only added outside production")
	})

	t.Run("Should drop records below the configured level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{
			Name:        "vibe-pricing",
			Environment: "development",
			LogLevel:    "warn",
			LogFormat:   "text",
		}, &buf)

		log.Info("not written")
		log.Warn("written")

		assert.NotContains(t, buf.String(), "not written")
		assert.Contains(t, buf.String(), "msg=written")
	})

	t.Run("Should panic on nil config", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { NewWithWriter(nil, &bytes.Buffer{}) })
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "WARN", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "super-critical", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}
