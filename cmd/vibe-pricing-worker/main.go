// Package main runs the Vibe pricing worker.
//
// It is the composition root for the background side of the pricing engine:
// it wires the cache tiers and the rule compiler, keeps the compiled index warm,
// purges expired durable cache rows and serves probes and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/cache"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/database"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/logger"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/observability"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/store"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/sweeper"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

// run executes the worker lifecycle.
func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	l := logger.New(&cfg.App)
	slog.SetDefault(l)
	cfg.LogConfig(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, l)

	// -------------------------------------------------------------------------
	// 2. Infrastructure
	// -------------------------------------------------------------------------
	var checkers []observability.Checker

	var pool *pgxpool.Pool
	if cfg.Database.IsConfigured() {
		pool, err = database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()
		checkers = append(checkers, database.NewHealthChecker(pool))
	}

	memTier, err := cache.NewMemoryTier(cfg.Cache.MemoryCapacity)
	if err != nil {
		return fmt.Errorf("failed to build memory cache tier: %w", err)
	}
	defer memTier.Close()
	tiers := []cache.Tier{memTier}

	if cfg.Cache.RedisEnabled {
		rdb, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		tiers = append(tiers, cache.NewRedisTier(rdb))
		checkers = append(checkers, cache.NewHealthChecker(rdb))
	}

	var durable *cache.PostgresTier
	if cfg.Cache.DurableEnabled && pool != nil {
		durable = cache.NewPostgresTier(pool, cfg.Cache.DurableTable)
		tiers = append(tiers, durable)
	}

	// -------------------------------------------------------------------------
	// 3. Wiring
	// -------------------------------------------------------------------------
	var rules store.RuleRepository
	if cfg.RulesFile != "" {
		rules, err = store.LoadMemoryStore(cfg.RulesFile)
		if err != nil {
			return err
		}
	} else {
		rules = store.NewPostgresStore(pool)
	}

	tiered := cache.NewTiered(l, cfg.Cache.BackfillTTL, tiers...)
	manager := cache.NewManager(tiered, cfg.Cache.Namespace, l)
	compiler := ruleengine.NewCompiler(rules, manager, cfg.Pricing.IndexTTL, l)

	var purger sweeper.Purger
	if durable != nil {
		purger = durable
	}
	worker := sweeper.New(l, cfg.Sweeper, purger, compiler)

	l.Info("cache tiers ready", slog.Any("tiers", tiered.Tiers()))

	// -------------------------------------------------------------------------
	// 4. Observability & worker
	// -------------------------------------------------------------------------
	obs := observability.NewServer(l, &cfg.Observability, checkers...)
	if err := obs.Start(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Run(ctx)
	}()

	// -------------------------------------------------------------------------
	// 5. Graceful shutdown
	// -------------------------------------------------------------------------
	var runErr error
	select {
	case runErr = <-errChan:
		stop()
	case <-ctx.Done():
		l.Info("shutdown signal received, stopping worker")
		runErr = <-errChan
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("observability server shutdown: %w", err))
	}

	if runErr == nil {
		l.Info("worker exited successfully")
	}
	return runErr
}
