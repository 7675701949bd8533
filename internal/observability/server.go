package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/logger"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/validation"
)

// Server exposes liveness, readiness and Prometheus metrics for the pricing worker.
// It listens on its own port so probes never compete with the host application.
type Server struct {
	logger   *slog.Logger
	cfg      *config.ObservabilityConfig
	router   *chi.Mux
	server   *http.Server
	checkers []Checker
}

// NewServer builds the router. Every checker passed in is run by the readiness probe.
func NewServer(log *slog.Logger, cfg *config.ObservabilityConfig, checkers ...Checker) *Server {
	validation.AssertNotNil(cfg, "observability config")
	for _, c := range checkers {
		validation.AssertPresent(c, "readiness checker")
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	s := &Server{
		logger:   logger.Component(log, "observability"),
		cfg:      cfg,
		router:   r,
		checkers: checkers,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get(s.cfg.LivenessPath, s.liveness)
	s.router.Get(s.cfg.ReadinessPath, s.readiness)
	s.router.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.Handler())
}

// Handler returns the configured router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the port and serves in a background goroutine. A bind failure is
// returned; later serve errors are logged.
func (s *Server) Start() error {
	addr := net.JoinHostPort("", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind observability port %s: %w", s.cfg.Port, err)
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Timeout,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
		IdleTimeout:       s.cfg.Timeout * 3,
	}

	s.logger.Info("observability server listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("liveness_path", s.cfg.LivenessPath),
		slog.String("readiness_path", s.cfg.ReadinessPath),
		slog.String("metrics_path", s.cfg.MetricsPath),
	)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Shutdown gracefully stops the server. It is a no-op if Start was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("stopping observability server")
	return s.server.Shutdown(ctx)
}
