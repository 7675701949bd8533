package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/catalog"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/logger"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/observability"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/pricing"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/validation"
)

// AnalysisCache is the slice of cache.Manager the processor needs.
type AnalysisCache interface {
	CartKey(parts ...string) string
	GetCartAnalysis(ctx context.Context, key string, dst any) bool
	SetCartAnalysis(ctx context.Context, key string, analysis any, ttl time.Duration) bool
	ClearCartAnalyses(ctx context.Context) bool
}

// Processor analyses whole carts against the compiled rule index.
type Processor struct {
	engine  *pricing.Engine
	catalog catalog.Catalog
	cache   AnalysisCache
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewProcessor wires the processor. ttl is how long an analysis stays cached.
func NewProcessor(engine *pricing.Engine, cat catalog.Catalog, cache AnalysisCache, ttl time.Duration, log *slog.Logger) *Processor {
	validation.AssertNotNil(engine, "pricing engine")
	validation.AssertPresent(cat, "catalog")
	validation.AssertPresent(cache, "analysis cache")
	return &Processor{
		engine:  engine,
		catalog: cat,
		cache:   cache,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.Component(log, "cart_processor"),
	}
}

// WithClock replaces the clock stamping ProcessedAt.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Analyze evaluates every line of c under opts. It never fails: a catalog or
// rule store outage yields lines without rules, which makes the gateway
// unavailable, and such an analysis is not cached.
func (p *Processor) Analyze(ctx context.Context, c Cart, opts Options) Analysis {
	start := time.Now()
	outcome := "computed"
	defer func() {
		observability.CartAnalyses.WithLabelValues(outcome).Inc()
		observability.CartAnalysisDuration.Observe(time.Since(start).Seconds())
	}()

	if opts.Context == "" {
		opts.Context = ContextGatewayCheck
	}

	if c.Empty() {
		outcome = "empty"
		return Analysis{Items: []ItemAnalysis{}, ProcessedAt: p.now()}
	}

	key := p.cache.CartKey(append(c.fingerprint(),
		opts.Context,
		opts.PaymentMethod,
		ruleengine.NormalizeReferrer(opts.Referrer),
		opts.ApplyMode,
	)...)

	var cached Analysis
	if p.cache.GetCartAnalysis(ctx, key, &cached) {
		outcome = "cache_hit"
		cached.Cached = true
		return cached
	}

	ids := collectProductIDs(c)
	products, err := p.catalog.GetProducts(ctx, ids)
	batchFailed := err != nil
	if batchFailed {
		outcome = "batch_load_failed"
		p.logger.Warn("cart product batch load failed, lines treated as unmatched",
			slog.Int("products", len(ids)),
			slog.String("error", err.Error()),
		)
		products = map[int64]*catalog.Product{}
	}

	// Lines may name a variation directly; its parent is only known after the
	// first batch.
	if parents := missingParents(c, products); len(parents) > 0 {
		ids = append(ids, parents...)
		loaded, err := p.catalog.GetProducts(ctx, parents)
		if err != nil {
			batchFailed = true
			outcome = "batch_load_failed"
			p.logger.Warn("cart parent product load failed, variations resolved alone",
				slog.Int("products", len(parents)),
				slog.String("error", err.Error()),
			)
		}
		for id, product := range loaded {
			products[id] = product
		}
	}

	idx := p.engine.Index(ctx)
	ec := pricing.EvaluationContext{
		Referrer:      opts.Referrer,
		PaymentMethod: opts.PaymentMethod,
		ApplyMode:     opts.ApplyMode,
		Type:          contextType(opts.Context),
	}

	a := Analysis{
		GatewayAvailable: true,
		TotalItems:       len(c.Lines),
		Items:            make([]ItemAnalysis, 0, len(c.Lines)),
	}
	for _, line := range c.Lines {
		item := p.analyzeLine(idx, ec, line, products)
		if item.HasRules {
			a.ItemsWithRules++
		} else {
			a.GatewayAvailable = false
		}
		a.Items = append(a.Items, item)
	}
	if opts.Context != ContextGatewayCheck {
		a.GatewayAvailable = a.ItemsWithRules > 0
	}

	a.Stats = Stats{
		ProductsRequested: len(ids),
		ProductsLoaded:    len(products),
		IndexRules:        idx.Len(),
		DurationMicros:    time.Since(start).Microseconds(),
	}
	a.ProcessedAt = p.now()

	switch {
	case batchFailed:
	case !idx.Cacheable():
		outcome = "degraded_index"
	default:
		p.cache.SetCartAnalysis(ctx, key, a, p.ttl)
	}

	p.logger.Debug("cart analysed",
		slog.String("context", opts.Context),
		slog.Int("total_items", a.TotalItems),
		slog.Int("items_with_rules", a.ItemsWithRules),
		slog.Bool("gateway_available", a.GatewayAvailable),
	)
	return a
}

func (p *Processor) analyzeLine(idx *ruleengine.CompiledIndex, ec pricing.EvaluationContext, line Line, products map[int64]*catalog.Product) ItemAnalysis {
	item := ItemAnalysis{Key: line.Key, ProductID: line.ProductID, VariationID: line.VariationID}
	if line.ProductID <= 0 || line.Qty <= 0 {
		item.Reason = ReasonInvalidLine
		return item
	}

	product, ok := products[line.ItemID()]
	if !ok {
		item.Reason = ReasonProductNotFound
		return item
	}
	targets := []*catalog.Product{product}
	if parentID := parentOf(line, product); parentID > 0 {
		if parent, ok := products[parentID]; ok {
			targets = append(targets, parent)
		}
	}

	item.RuleIDs = p.engine.MatchingRules(idx, ec, targets...)
	item.HasRules = len(item.RuleIDs) > 0
	item.Reason = ReasonNoRule
	if item.HasRules {
		item.Reason = ReasonMatched
	}
	return item
}

// IsGatewayAvailable reports whether the gateway may be offered for c.
func (p *Processor) IsGatewayAvailable(ctx context.Context, c Cart, paymentMethod, referrer string) bool {
	return p.Analyze(ctx, c, Options{
		Context:       ContextGatewayCheck,
		PaymentMethod: paymentMethod,
		Referrer:      referrer,
	}).GatewayAvailable
}

// ClearCartCache drops every cached analysis. Call it after mutating a cart.
func (p *Processor) ClearCartCache(ctx context.Context) bool {
	ok := p.cache.ClearCartAnalyses(ctx)
	if !ok {
		p.logger.Warn("cart cache clear incomplete")
	}
	return ok
}

// collectProductIDs gathers, in one pass, every id needed to evaluate c: the
// line product and, for variation lines, the variation itself.
func collectProductIDs(c Cart) []int64 {
	seen := make(map[int64]struct{}, len(c.Lines)*2)
	ids := make([]int64, 0, len(c.Lines)*2)
	add := func(id int64) {
		if id <= 0 {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, l := range c.Lines {
		add(l.ProductID)
		add(l.VariationID)
	}
	return ids
}

// missingParents returns the parent ids of loaded variations that are not in
// products yet.
func missingParents(c Cart, products map[int64]*catalog.Product) []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, l := range c.Lines {
		product, ok := products[l.ItemID()]
		if !ok {
			continue
		}
		parentID := parentOf(l, product)
		if parentID <= 0 {
			continue
		}
		if _, ok := products[parentID]; ok {
			continue
		}
		if _, dup := seen[parentID]; dup {
			continue
		}
		seen[parentID] = struct{}{}
		ids = append(ids, parentID)
	}
	return ids
}

// parentOf returns the parent id for a variation line, or zero.
func parentOf(line Line, product *catalog.Product) int64 {
	if line.VariationID > 0 && line.ProductID != line.VariationID {
		return line.ProductID
	}
	if product.IsVariation() {
		return product.ParentID
	}
	return 0
}

func contextType(processingContext string) pricing.ContextType {
	if processingContext == ContextGatewayCheck {
		return pricing.ContextApplication
	}
	return pricing.ContextDisplay
}
