package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                  { return s.name }
func (s stubChecker) Check(_ context.Context) error { return s.err }

func testObservabilityConfig() *config.ObservabilityConfig {
	return &config.ObservabilityConfig{
		Port:          "9090",
		LivenessPath:  "/healthz",
		ReadinessPath: "/readyz",
		MetricsPath:   "/metrics",
		Timeout:       time.Second,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_Liveness(t *testing.T) {
	srv := NewServer(quietLogger(), testObservabilityConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantReady  bool
		wantDeps   map[string]string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantReady:  true,
			wantDeps:   map[string]string{},
		},
		{
			name:       "all dependencies up",
			checkers:   []Checker{stubChecker{name: "postgres"}, stubChecker{name: "redis"}},
			wantStatus: http.StatusOK,
			wantReady:  true,
			wantDeps:   map[string]string{"postgres": "up", "redis": "up"},
		},
		{
			name: "one dependency down",
			checkers: []Checker{
				stubChecker{name: "postgres"},
				stubChecker{name: "redis", err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantReady:  false,
			wantDeps:   map[string]string{"postgres": "up", "redis": "down: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(quietLogger(), testObservabilityConfig(), tt.checkers...)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got readinessReport
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantReady, got.Ready)
			assert.Equal(t, tt.wantDeps, got.Dependencies)
		})
	}
}

func TestServer_MetricsExposesVibeNamespace(t *testing.T) {
	CartAnalyses.WithLabelValues("computed").Inc()
	srv := NewServer(quietLogger(), testObservabilityConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vibe_pricing_sweeper_purged_rows_total")
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	srv := NewServer(quietLogger(), testObservabilityConfig())
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_StartAndShutdown(t *testing.T) {
	cfg := testObservabilityConfig()
	cfg.Port = "0"
	srv := NewServer(quietLogger(), cfg)

	require.NoError(t, srv.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestNewServer_RejectsNilChecker(t *testing.T) {
	var nilChecker *stubChecker
	assert.Panics(t, func() { NewServer(quietLogger(), testObservabilityConfig(), nilChecker) })
}
