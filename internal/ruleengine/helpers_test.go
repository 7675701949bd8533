package ruleengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/cache"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingRepo wraps a MemoryStore, counting loads and optionally failing them.
type countingRepo struct {
	*store.MemoryStore
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRepo) ListActiveRules(ctx context.Context) ([]store.PricingRule, error) {
	r.mu.Lock()
	r.calls++
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.MemoryStore.ListActiveRules(ctx)
}

func (r *countingRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var errStoreDown = errors.New("connection refused")

// newTestManager returns a cache manager over a single in-process tier.
func newTestManager(t *testing.T) *cache.Manager {
	t.Helper()
	mem, err := cache.NewMemoryTier(1000)
	require.NoError(t, err)
	t.Cleanup(mem.Close)
	return cache.NewManager(cache.NewTiered(discardLogger(), time.Minute, mem), "vibe", discardLogger())
}

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func rule(id int64, priority int, product, adjustment string) store.PricingRule {
	return store.PricingRule{
		ID:                id,
		Name:              "rule",
		Priority:          priority,
		Status:            store.StatusActive,
		ProductConditions: []byte(product),
		PriceAdjustment:   []byte(adjustment),
	}
}
