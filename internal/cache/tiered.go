package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/logger"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/observability"
)

// Tiered composes any number of tiers, fastest first.
//
//   - Get falls through the tiers and backfills every faster tier on a hit.
//   - Set and Delete hit every tier; one tier failing does not stop the others.
//   - Tier errors are logged and counted, then treated as a miss or a failed write.
//
// Callers never see an error: a broken tier only costs the caching benefit.
type Tiered struct {
	tiers       []Tier
	backfillTTL time.Duration
	logger      *slog.Logger
}

// NewTiered builds the decorator. backfillTTL is used when a value found in a slow
// tier is copied into faster ones, since tiers do not report remaining lifetimes.
func NewTiered(log *slog.Logger, backfillTTL time.Duration, tiers ...Tier) *Tiered {
	for _, t := range tiers {
		if t == nil {
			panic("critical error: cache tier cannot be nil")
		}
	}
	return &Tiered{
		tiers:       tiers,
		backfillTTL: backfillTTL,
		logger:      logger.Component(log, "tiered_cache"),
	}
}

// Tiers returns the configured tier names, fastest first.
func (c *Tiered) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name()
	}
	return names
}

// Get returns the first hit walking fast to slow.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, t := range c.tiers {
		v, ok, err := t.Get(ctx, key)
		if err != nil {
			c.tierFailed(t, "get", key, err)
			continue
		}
		if !ok {
			observability.CacheTierMisses.WithLabelValues(t.Name()).Inc()
			continue
		}
		observability.CacheTierHits.WithLabelValues(t.Name()).Inc()
		c.backfill(ctx, key, v, c.tiers[:i])
		return v, true
	}
	return nil, false
}

func (c *Tiered) backfill(ctx context.Context, key string, value []byte, faster []Tier) {
	if c.backfillTTL <= 0 {
		return
	}
	for _, t := range faster {
		if err := t.Set(ctx, key, value, c.backfillTTL); err != nil {
			c.tierFailed(t, "backfill", key, err)
			continue
		}
		observability.CacheBackfills.WithLabelValues(t.Name()).Inc()
	}
}

// Set writes to every tier and reports whether all of them accepted the value.
func (c *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ok := true
	for _, t := range c.tiers {
		if err := t.Set(ctx, key, value, ttl); err != nil {
			c.tierFailed(t, "set", key, err)
			ok = false
		}
	}
	return ok
}

// Delete removes key from every tier.
func (c *Tiered) Delete(ctx context.Context, key string) bool {
	ok := true
	for _, t := range c.tiers {
		if err := t.Delete(ctx, key); err != nil {
			c.tierFailed(t, "delete", key, err)
			ok = false
		}
	}
	return ok
}

// ClearNamespace removes every key starting with prefix from every tier.
func (c *Tiered) ClearNamespace(ctx context.Context, prefix string) bool {
	ok := true
	for _, t := range c.tiers {
		if err := t.DeletePrefix(ctx, prefix); err != nil {
			c.tierFailed(t, "clear", prefix, err)
			ok = false
		}
	}
	if ok {
		c.logger.Debug("cache namespace cleared", slog.String("prefix", prefix))
	}
	return ok
}

func (c *Tiered) tierFailed(t Tier, op, key string, err error) {
	observability.CacheTierErrors.WithLabelValues(t.Name(), op).Inc()
	c.logger.Warn("cache tier operation failed",
		slog.String("tier", t.Name()),
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
