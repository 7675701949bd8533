package pricing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/catalog"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/logger"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/observability"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/validation"
)

// IndexSource hands out the current compiled index. *ruleengine.Compiler implements it.
type IndexSource interface {
	GetCompiledIndex(ctx context.Context) *ruleengine.CompiledIndex
}

// PriceCache is the slice of cache.Manager the engine uses.
type PriceCache interface {
	PriceKey(productID int64, contextParts ...string) string
	GetDynamicPrice(ctx context.Context, key string, dst any) bool
	SetDynamicPrice(ctx context.Context, key string, result any, ttl time.Duration) bool
	GetProductRules(ctx context.Context, productID int64, dst any) bool
	SetProductRules(ctx context.Context, productID int64, ruleIDs any, ttl time.Duration) bool
}

// PriceResult is the outcome of a price resolution. When Applied is false, Price
// equals Original and no rule fired.
type PriceResult struct {
	Price    decimal.Decimal           `json:"price"`
	Original decimal.Decimal           `json:"original"`
	Applied  bool                      `json:"applied"`
	RuleID   int64                     `json:"rule_id,omitempty"`
	Display  ruleengine.DisplayOptions `json:"display"`
	// Cached is set when the result came from the price cache.
	Cached bool `json:"-"`
}

// notApplicable is returned for invalid input and when no rule fires.
func notApplicable(original decimal.Decimal) PriceResult {
	return PriceResult{Price: original, Original: original}
}

// Engine resolves dynamic prices. It holds no per-request state.
type Engine struct {
	index   IndexSource
	catalog catalog.Catalog
	cache   PriceCache
	cfg     config.PricingConfig
	logger  *slog.Logger
}

func NewEngine(index IndexSource, cat catalog.Catalog, cache PriceCache, cfg *config.PricingConfig, log *slog.Logger) *Engine {
	validation.AssertPresent(index, "index source")
	validation.AssertPresent(cat, "catalog")
	validation.AssertPresent(cache, "price cache")
	validation.AssertNotNil(cfg, "pricing config")
	return &Engine{
		index:   index,
		catalog: cat,
		cache:   cache,
		cfg:     *cfg,
		logger:  logger.Component(log, "pricing_engine"),
	}
}

// GatewayID is the payment method id the engine treats as the Vibe gateway.
func (e *Engine) GatewayID() string { return e.cfg.GatewayID }

// Index returns the current compiled index.
func (e *Engine) Index(ctx context.Context) *ruleengine.CompiledIndex {
	return e.index.GetCompiledIndex(ctx)
}

// GetDynamicPrice returns the price of product under ec. It never fails: invalid
// input, missing rules and dependency errors all yield the original price.
func (e *Engine) GetDynamicPrice(ctx context.Context, product *catalog.Product, original decimal.Decimal, ec EvaluationContext) PriceResult {
	return e.getDynamicPrice(ctx, nil, product, original, ec)
}

// getDynamicPrice resolves with idx when the caller already holds an index.
func (e *Engine) getDynamicPrice(ctx context.Context, idx *ruleengine.CompiledIndex, product *catalog.Product, original decimal.Decimal, ec EvaluationContext) PriceResult {
	start := time.Now()
	ec = ec.withDefaults(e.cfg.ApplyMode)
	outcome := "invalid"
	defer func() {
		observability.PriceResolutions.WithLabelValues(outcome, string(ec.Type)).Inc()
		observability.PriceResolutionDuration.Observe(time.Since(start).Seconds())
	}()

	if product == nil || product.ID <= 0 || original.Sign() <= 0 {
		return notApplicable(original)
	}

	key := e.cache.PriceKey(product.ID, append(ec.cacheParts(), original.String())...)
	var cached PriceResult
	if e.cache.GetDynamicPrice(ctx, key, &cached) {
		outcome = "cache_hit"
		cached.Cached = true
		return cached
	}

	if idx == nil {
		idx = e.index.GetCompiledIndex(ctx)
	}
	rule, complete := e.resolve(ctx, idx, product, ec)

	result := notApplicable(original)
	outcome = "no_rule"
	if rule != nil {
		base := original
		if rule.DiscountIntegration == ruleengine.DiscountRegularPrice && product.RegularPrice.Sign() > 0 {
			base = product.RegularPrice
		}
		result = PriceResult{
			Price:    Adjust(rule.Adjustment, base, e.cfg.CurrencyPrecision),
			Original: original,
			Applied:  true,
			RuleID:   rule.ID,
			Display:  rule.Display,
		}
		outcome = "applied"
	}

	if !complete || !idx.Cacheable() {
		e.logger.Debug("price resolved from incomplete data, not cached",
			slog.Int64("product_id", product.ID),
		)
		return result
	}
	e.cache.SetDynamicPrice(ctx, key, result, e.cfg.PriceTTL)
	return result
}

// ResolveRule returns the winning rule for product under ec, or nil.
func (e *Engine) ResolveRule(ctx context.Context, product *catalog.Product, ec EvaluationContext) *ruleengine.CompiledRule {
	if product == nil {
		return nil
	}
	rule, _ := e.resolve(ctx, e.index.GetCompiledIndex(ctx), product, ec.withDefaults(e.cfg.ApplyMode))
	return rule
}

// resolve returns the winning rule. complete is false when a catalog lookup
// failed and the answer may change once it recovers.
func (e *Engine) resolve(ctx context.Context, idx *ruleengine.CompiledIndex, product *catalog.Product, ec EvaluationContext) (*ruleengine.CompiledRule, bool) {
	ids, complete := e.productRuleIDs(ctx, idx, product)
	for _, id := range ids {
		if r := idx.Rule(id); r != nil && e.MatchesContext(r, ec) {
			return r, complete
		}
	}
	return nil, complete
}

// productRuleIDs returns the rules targeting product (and its parent for
// variations), from the per-product cache when possible. Lists built from a
// degraded index or without a reachable parent are not cached.
func (e *Engine) productRuleIDs(ctx context.Context, idx *ruleengine.CompiledIndex, product *catalog.Product) ([]int64, bool) {
	var ids []int64
	if e.cache.GetProductRules(ctx, product.ID, &ids) {
		return ids, true
	}

	complete := true
	products := []*catalog.Product{product}
	if product.IsVariation() {
		parent, err := e.catalog.GetProduct(ctx, product.ParentID)
		switch {
		case err == nil:
			products = append(products, parent)
		case errors.Is(err, catalog.ErrNotFound):
			e.logger.Warn("parent product missing, resolving variation alone",
				slog.Int64("product_id", product.ID),
				slog.Int64("parent_id", product.ParentID),
			)
		default:
			complete = false
			e.logger.Warn("parent product unavailable, resolving variation alone",
				slog.Int64("product_id", product.ID),
				slog.Int64("parent_id", product.ParentID),
				slog.String("error", err.Error()),
			)
		}
	}

	ids = idx.ApplicableRuleIDs(products...)
	if ids == nil {
		ids = []int64{}
	}
	if complete && idx.Cacheable() {
		e.cache.SetProductRules(ctx, product.ID, ids, e.cfg.ProductRulesTTL)
	}
	return ids, complete
}

// LineFee is the amount the cart totals layer adds for a line: (adjusted - original) * qty,
// evaluated in application context. It is zero when no rule fires.
func (e *Engine) LineFee(ctx context.Context, product *catalog.Product, original decimal.Decimal, qty int, ec EvaluationContext) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	ec.Type = ContextApplication
	res := e.GetDynamicPrice(ctx, product, original, ec)
	if !res.Applied {
		return decimal.Zero
	}
	return res.Price.Sub(res.Original).Mul(decimal.NewFromInt(int64(qty)))
}
