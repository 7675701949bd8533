package pricing

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/cache"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/catalog"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticIndex serves a fixed index and counts fetches.
type staticIndex struct {
	mu    sync.Mutex
	idx   *ruleengine.CompiledIndex
	calls int
}

func (s *staticIndex) GetCompiledIndex(context.Context) *ruleengine.CompiledIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.idx
}

func (s *staticIndex) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// panickingIndex blows up on fetch.
type panickingIndex struct{}

func (panickingIndex) GetCompiledIndex(context.Context) *ruleengine.CompiledIndex {
	panic("index unavailable")
}

func testConfig(mode string) *config.PricingConfig {
	return &config.PricingConfig{
		ApplyMode:         mode,
		TargetDomains:     []string{"vibe.ir"},
		GatewayID:         "vibe",
		CurrencyPrecision: 0,
		IndexTTL:          time.Hour,
		ProductRulesTTL:   time.Hour,
		PriceTTL:          30 * time.Minute,
		CartTTL:           30 * time.Minute,
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

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func simple(id int64, price string, categories ...int64) *catalog.Product {
	return &catalog.Product{
		ID:           id,
		Type:         catalog.TypeSimple,
		CategoryIDs:  categories,
		Price:        dec(price),
		RegularPrice: dec(price),
	}
}

type fixture struct {
	engine  *Engine
	index   *staticIndex
	catalog *catalog.MemoryCatalog
	cache   *cache.Manager
}

// newFixture compiles rules into a static index and wires an engine over a
// single in-process cache tier.
func newFixture(t *testing.T, mode string, rules []store.PricingRule, products ...*catalog.Product) *fixture {
	t.Helper()
	mgr := newTestManager(t)
	idx := &staticIndex{idx: ruleengine.Compile(rules, time.Unix(1, 0), discardLogger())}
	cat := catalog.NewMemoryCatalog(products...)

	return &fixture{
		engine:  NewEngine(idx, cat, mgr, testConfig(mode), discardLogger()),
		index:   idx,
		catalog: cat,
		cache:   mgr,
	}
}

// flakyRepo serves rules from a MemoryStore unless err is set.
type flakyRepo struct {
	*store.MemoryStore
	mu  sync.Mutex
	err error
}

func (r *flakyRepo) ListActiveRules(ctx context.Context) ([]store.PricingRule, error) {
	r.mu.Lock()
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.MemoryStore.ListActiveRules(ctx)
}

func (r *flakyRepo) Fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// flakyCatalog fails single-product lookups while err is set.
type flakyCatalog struct {
	*catalog.MemoryCatalog
	mu  sync.Mutex
	err error
}

func (c *flakyCatalog) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MemoryCatalog.GetProduct(ctx, id)
}

func (c *flakyCatalog) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// newTestManager returns a cache manager over a single in-process tier.
func newTestManager(t *testing.T) *cache.Manager {
	t.Helper()
	mem, err := cache.NewMemoryTier(1000)
	require.NoError(t, err)
	t.Cleanup(mem.Close)
	return cache.NewManager(cache.NewTiered(discardLogger(), time.Minute, mem), "vibe", discardLogger())
}
