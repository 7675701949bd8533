package ruleengine

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/logger"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/observability"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/store"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/validation"
)

// IndexCache is the slice of cache.Manager the compiler needs.
type IndexCache interface {
	GetCompiledIndex(ctx context.Context, dst any) bool
	SetCompiledIndex(ctx context.Context, index any, ttl time.Duration) bool
	DeleteCompiledIndex(ctx context.Context) bool
	ClearProductRules(ctx context.Context) bool
	ClearPrices(ctx context.Context) bool
	ClearCartAnalyses(ctx context.Context) bool
}

// Compiler builds and caches the CompiledIndex.
type Compiler struct {
	repo   store.RuleRepository
	cache  IndexCache
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	version string // last version this compiler built
}

// NewCompiler wires the compiler. ttl is how long a compiled index stays cached.
func NewCompiler(repo store.RuleRepository, cache IndexCache, ttl time.Duration, log *slog.Logger) *Compiler {
	validation.AssertPresent(repo, "rule repository")
	validation.AssertPresent(cache, "index cache")
	return &Compiler{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Component(log, "rule_compiler"),
	}
}

// WithClock replaces the clock stamping CompiledAt.
func (c *Compiler) WithClock(now func() time.Time) *Compiler {
	c.now = now
	return c
}

// GetCompiledIndex returns the cached index or rebuilds it from the store.
// It never fails: if the store cannot be read the result is an empty index
// flagged Degraded, which is returned but not cached so the next call retries.
func (c *Compiler) GetCompiledIndex(ctx context.Context) *CompiledIndex {
	var cached CompiledIndex
	if c.cache.GetCompiledIndex(ctx, &cached) {
		return &cached
	}
	return c.rebuild(ctx, "")
}

// Rebuild compiles the active rule set and caches it, bypassing any cached index.
// When the rule set changed since the previous index, the per-product rule
// lists, prices and cart analyses built from it are cleared.
// The result is Degraded when the store could not be read.
func (c *Compiler) Rebuild(ctx context.Context) *CompiledIndex {
	var cached CompiledIndex
	previous := ""
	if c.cache.GetCompiledIndex(ctx, &cached) {
		previous = cached.Version
	}
	return c.rebuild(ctx, previous)
}

func (c *Compiler) rebuild(ctx context.Context, previous string) *CompiledIndex {
	start := time.Now()
	log := c.logger

	rules, err := c.repo.ListActiveRules(ctx)
	if err != nil {
		observability.IndexCompilations.WithLabelValues("store_error").Inc()
		log.Error("loading pricing rules failed, serving empty index",
			slog.String("error", err.Error()),
		)
		idx := NewEmptyIndex(c.now())
		idx.Degraded = true
		return idx
	}

	idx := Compile(rules, c.now(), log)

	observability.IndexCompilations.WithLabelValues("success").Inc()
	observability.IndexCompileDuration.Observe(time.Since(start).Seconds())
	observability.IndexRules.Set(float64(idx.Len()))

	if !c.cache.SetCompiledIndex(ctx, idx, c.ttl) {
		log.Warn("compiled index not fully cached")
	}
	if last := c.swapVersion(idx.Version); previous == "" {
		previous = last
	}
	if previous != "" && previous != idx.Version {
		log.Info("pricing rules changed, clearing derived entries",
			slog.String("previous_version", previous),
		)
		if !c.clearDerived(ctx) {
			log.Warn("derived entry clear incomplete; stale entries expire with their ttl")
		}
	}
	log.Info("pricing rules compiled",
		slog.Int("rules", idx.Len()),
		slog.Int("global_rules", len(idx.GlobalRules)),
		slog.String("version", idx.Version),
		slog.Duration("took", time.Since(start)),
	)
	return idx
}

// InvalidateIndex drops the cached index and everything derived from it:
// per-product rule lists, prices and cart analyses. Call it after any rule change.
func (c *Compiler) InvalidateIndex(ctx context.Context) bool {
	observability.IndexInvalidations.Inc()
	ok := c.cache.DeleteCompiledIndex(ctx)
	ok = c.clearDerived(ctx) && ok
	if !ok {
		c.logger.Warn("index invalidation incomplete; stale entries expire with their ttl")
	}
	return ok
}

func (c *Compiler) clearDerived(ctx context.Context) bool {
	ok := c.cache.ClearProductRules(ctx)
	ok = c.cache.ClearPrices(ctx) && ok
	return c.cache.ClearCartAnalyses(ctx) && ok
}

// swapVersion records version as the latest build and returns the one before it.
func (c *Compiler) swapVersion(version string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := c.version
	c.version = version
	return last
}

// Compile builds an index from rules, which must already be ordered priority
// descending then id ascending. Unreadable blobs fall back to defaults and are
// logged; they never abort the compile.
func Compile(rules []store.PricingRule, at time.Time, log *slog.Logger) *CompiledIndex {
	if log == nil {
		log = slog.Default()
	}
	idx := NewEmptyIndex(at)
	version := murmur3.New128()

	for i := range rules {
		r := compileRule(&rules[i], log)
		idx.Rules[r.ID] = r
		_, _ = version.Write([]byte(r.Hash))

		switch r.Conditions.Kind {
		case ConditionSpecific:
			for _, id := range r.Conditions.IDs {
				idx.ProductRules[id] = append(idx.ProductRules[id], r.ID)
			}
		case ConditionCategories:
			for _, id := range r.Conditions.IDs {
				idx.CategoryRules[id] = append(idx.CategoryRules[id], r.ID)
			}
		case ConditionTags:
			for _, id := range r.Conditions.IDs {
				idx.TagRules[id] = append(idx.TagRules[id], r.ID)
			}
		default:
			// all, price_range, complex and fallbacks are checked against every product.
			idx.GlobalRules = append(idx.GlobalRules, r.ID)
		}
	}

	idx.Version = hex.EncodeToString(version.Sum(nil))
	return idx
}

func compileRule(row *store.PricingRule, log *slog.Logger) *CompiledRule {
	r := &CompiledRule{
		ID:       row.ID,
		Name:     row.Name,
		Priority: row.Priority,
		Hash:     ruleHash(row),
	}

	malformed := func(field string, err error) {
		r.Malformed = append(r.Malformed, field)
		observability.MalformedRuleFields.WithLabelValues(field).Inc()
		log.Warn("malformed rule field, using fallback",
			slog.Int64("rule_id", row.ID),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
	}

	var err error
	if r.Referrer, err = parseReferrerConditions(row.ReferrerConditions); err != nil {
		malformed(fieldReferrer, err)
		r.Referrer = ReferrerConditions{}
	}
	if r.Conditions, err = parseProductConditions(row.ProductConditions); err != nil {
		malformed(fieldProduct, err)
		r.Conditions = ConditionSpec{Kind: ConditionNoRestriction}
	}
	if r.Adjustment, err = parseAdjustment(row.PriceAdjustment); err != nil {
		malformed(fieldAdjustment, err)
		r.Adjustment = Adjustment{Type: AdjustPercentage}
	}
	if r.Display, err = parseDisplayOptions(row.DisplayOptions); err != nil {
		malformed(fieldDisplay, err)
		r.Display = DisplayOptions{}
	}
	if r.DiscountIntegration, err = parseDiscountIntegration(row.DiscountIntegration); err != nil {
		malformed(fieldDiscount, err)
	}
	return r
}

// ruleHash digests every stored field so any edit produces a new hash.
func ruleHash(row *store.PricingRule) string {
	h := murmur3.New128()
	for _, part := range [][]byte{
		[]byte(strconv.FormatInt(row.ID, 10)),
		[]byte(row.Name),
		[]byte(strconv.Itoa(row.Priority)),
		row.ReferrerConditions,
		row.ProductConditions,
		row.PriceAdjustment,
		[]byte(row.DiscountIntegration),
		row.DisplayOptions,
	} {
		_, _ = h.Write([]byte(strconv.Itoa(len(part))))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
