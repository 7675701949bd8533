// Package sweeper implements the background worker that keeps the pricing
// caches healthy: it warms the compiled rule index and purges expired rows
// from the durable cache tier on cron schedules.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/robfig/cron/v3"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/logger"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/observability"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/validation"
)

// Job names used in logs and metrics.
const (
	JobSweep = "sweep"
	JobWarm  = "warm"
)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// Purger deletes expired durable cache rows. *cache.PostgresTier implements it.
type Purger interface {
	Sweep(ctx context.Context) (int64, error)
}

// IndexWarmer recompiles the rule index. *ruleengine.Compiler implements it.
type IndexWarmer interface {
	Rebuild(ctx context.Context) *ruleengine.CompiledIndex
}

// Service runs the maintenance jobs.
type Service struct {
	logger *slog.Logger
	config config.SweeperConfig
	purger Purger
	warmer IndexWarmer
	cron   *cron.Cron
}

// New creates the worker. purger may be nil when the durable tier is disabled;
// the sweep job is then not scheduled.
func New(log *slog.Logger, cfg config.SweeperConfig, purger Purger, warmer IndexWarmer) *Service {
	validation.AssertPresent(warmer, "index warmer")
	if purger != nil {
		validation.AssertPresent(purger, "durable cache purger")
	}
	return &Service{
		logger: logger.Component(log, "sweeper"),
		config: cfg,
		purger: purger,
		warmer: warmer,
		cron:   cron.New(),
	}
}

// Run warms the index once, then runs the scheduled jobs. It blocks until ctx is
// cancelled and waits for running jobs before returning.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting sweeper service",
		slog.Bool("enabled", s.config.Enabled),
		slog.String("schedule", s.config.Schedule),
		slog.String("warm_schedule", s.config.WarmSchedule),
	)

	s.Warm(ctx)

	if !s.config.Enabled {
		<-ctx.Done()
		s.logger.Info("sweeper service stopping...")
		return nil
	}

	if s.purger != nil {
		if _, err := s.cron.AddFunc(s.config.Schedule, func() { _ = s.Sweep(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule sweep %q: %w", s.config.Schedule, err)
		}
	}
	if s.config.WarmSchedule != "" {
		if _, err := s.cron.AddFunc(s.config.WarmSchedule, func() { s.Warm(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule warm %q: %w", s.config.WarmSchedule, err)
		}
	}

	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("sweeper service stopping...")
	<-s.cron.Stop().Done()
	return nil
}

// NextRuns reports the next scheduled time of every job.
func (s *Service) NextRuns() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

// Sweep purges expired durable cache rows once. A missing cache table is
// reported as skipped rather than failed.
func (s *Service) Sweep(ctx context.Context) error {
	if s.purger == nil {
		return nil
	}
	log := s.logger.With(slog.String("job", JobSweep), slog.String("run_id", uuid.NewString()))
	start := time.Now()

	purged, err := s.purger.Sweep(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			observability.SweeperRuns.WithLabelValues(JobSweep, "skipped").Inc()
			log.Warn("durable cache table missing, sweep skipped", slog.String("error", pgErr.Message))
			return nil
		}
		observability.SweeperRuns.WithLabelValues(JobSweep, "error").Inc()
		log.Error("sweep failed", slog.String("error", err.Error()))
		return err
	}

	observability.SweeperRuns.WithLabelValues(JobSweep, "success").Inc()
	observability.SweeperPurgedRows.Add(float64(purged))

	if purged > 0 {
		log.Info("sweep completed",
			slog.Int64("purged", purged),
			slog.Duration("took", time.Since(start)),
		)
	} else {
		log.Debug("sweep completed, nothing expired")
	}
	return nil
}

// Warm recompiles the rule index and refreshes its cache entry. A run that could
// not read the rule store counts as an error; the cached index is left alone.
func (s *Service) Warm(ctx context.Context) {
	log := s.logger.With(slog.String("job", JobWarm), slog.String("run_id", uuid.NewString()))
	start := time.Now()

	idx := s.warmer.Rebuild(ctx)
	if !idx.Cacheable() {
		observability.SweeperRuns.WithLabelValues(JobWarm, "error").Inc()
		log.Warn("rule index warm failed, rule store unreachable",
			slog.Duration("took", time.Since(start)),
		)
		return
	}

	observability.SweeperRuns.WithLabelValues(JobWarm, "success").Inc()
	log.Info("rule index warmed",
		slog.Int("rules", idx.Len()),
		slog.String("version", idx.Version),
		slog.Duration("took", time.Since(start)),
	)
}
