package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/catalog"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/store"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/testsupport"
)

const (
	allProducts = `{"target_type":"all"}`
	pctUp10     = `{"type":"percentage","value":10}`
	pctDown10   = `{"type":"percentage","value":-10}`
)

// Not parallel: asserts on shared counters.
func TestGetDynamicPrice_IdempotentAndCached(t *testing.T) {
	f := newFixture(t, config.ApplyModeAlways,
		[]store.PricingRule{rule(1, 10, allProducts, pctUp10)},
		simple(101, "1000"),
	)
	ctx := context.Background()
	p := simple(101, "1000")
	ec := EvaluationContext{Referrer: "vibe.ir", PaymentMethod: "vibe"}

	first := f.engine.GetDynamicPrice(ctx, p, dec("1000"), ec)
	require.True(t, first.Applied)
	assert.False(t, first.Cached)

	var second PriceResult
	testsupport.AssertMetricDelta(t, "vibe_pricing_engine_price_resolutions_total",
		map[string]string{"outcome": "cache_hit", "context_type": "display"}, 1, func() {
			second = f.engine.GetDynamicPrice(ctx, p, dec("1000"), ec)
		})

	assert.True(t, second.Cached)
	assert.True(t, first.Price.Equal(second.Price))
	assert.Equal(t, first.RuleID, second.RuleID)
	assert.Equal(t, first.Applied, second.Applied)
}

func TestGetDynamicPrice_Resolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rules     []store.PricingRule
		wantRule  int64
		wantPrice string
	}{
		{
			name: "higher priority wins",
			rules: []store.PricingRule{
				rule(1, 5, allProducts, pctDown10),
				rule(2, 10, allProducts, pctUp10),
			},
			wantRule:  2,
			wantPrice: "1100",
		},
		{
			name: "lower id wins a priority tie",
			rules: []store.PricingRule{
				rule(7, 5, allProducts, pctUp10),
				rule(3, 5, allProducts, pctDown10),
			},
			wantRule:  3,
			wantPrice: "900",
		},
		{
			name:      "fixed decrease",
			rules:     []store.PricingRule{rule(1, 1, allProducts, `{"type":"fixed","value":-50}`)},
			wantRule:  1,
			wantPrice: "950",
		},
		{
			name:      "fixed increase",
			rules:     []store.PricingRule{rule(1, 1, allProducts, `{"type":"fixed","value":"200"}`)},
			wantRule:  1,
			wantPrice: "1200",
		},
		{
			name:      "fixed price override",
			rules:     []store.PricingRule{rule(1, 1, allProducts, `{"type":"fixed_price","value":499}`)},
			wantRule:  1,
			wantPrice: "499",
		},
		{
			name:      "clamped at zero",
			rules:     []store.PricingRule{rule(1, 1, allProducts, `{"type":"fixed","value":-1500}`)},
			wantRule:  1,
			wantPrice: "0",
		},
		{
			name: "product-specific rule beats lower priority global",
			rules: []store.PricingRule{
				rule(1, 1, allProducts, pctDown10),
				rule(2, 50, `{"target_type":"specific","product_ids":[101]}`, pctUp10),
			},
			wantRule:  2,
			wantPrice: "1100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, config.ApplyModeAlways, tt.rules)

			got := f.engine.GetDynamicPrice(context.Background(), simple(101, "1000"), dec("1000"), EvaluationContext{})

			require.True(t, got.Applied)
			assert.Equal(t, tt.wantRule, got.RuleID)
			assert.True(t, dec(tt.wantPrice).Equal(got.Price), "want %s, got %s", tt.wantPrice, got.Price)
			assert.True(t, dec("1000").Equal(got.Original))
		})
	}
}

func TestGetDynamicPrice_InvalidInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ApplyModeAlways, []store.PricingRule{rule(1, 1, allProducts, pctUp10)})
	ctx := context.Background()

	tests := []struct {
		name     string
		product  *catalog.Product
		original string
	}{
		{"nil product", nil, "1000"},
		{"zero id", &catalog.Product{}, "1000"},
		{"zero price", simple(101, "1000"), "0"},
		{"negative price", simple(101, "1000"), "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.engine.GetDynamicPrice(ctx, tt.product, dec(tt.original), EvaluationContext{})
			assert.False(t, got.Applied)
			assert.True(t, dec(tt.original).Equal(got.Price))
		})
	}
}

func TestGetDynamicPrice_NoRuleIsCached(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ApplyModeAlways,
		[]store.PricingRule{rule(1, 1, `{"target_type":"specific","product_ids":[999]}`, pctUp10)})
	ctx := context.Background()

	first := f.engine.GetDynamicPrice(ctx, simple(101, "1000"), dec("1000"), EvaluationContext{})
	second := f.engine.GetDynamicPrice(ctx, simple(101, "1000"), dec("1000"), EvaluationContext{})

	assert.False(t, first.Applied)
	assert.False(t, second.Applied)
	assert.True(t, second.Cached)
	assert.True(t, dec("1000").Equal(second.Price))
}

func TestGetDynamicPrice_CombinedMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		paymentMethod   string
		referrer        string
		wantDisplay     bool
		wantApplication bool
	}{
		{"vibe", "https://shop.vibe.ir/landing", true, true},
		{"cod", "https://shop.vibe.ir/landing", true, false},
		{"vibe", "https://google.com/search", false, true},
		{"", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.paymentMethod+"@"+tt.referrer, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, config.ApplyModeCombined, []store.PricingRule{rule(1, 1, allProducts, pctUp10)})
			ctx := context.Background()
			ec := EvaluationContext{Referrer: tt.referrer, PaymentMethod: tt.paymentMethod}

			ec.Type = ContextDisplay
			assert.Equal(t, tt.wantDisplay, f.engine.GetDynamicPrice(ctx, simple(101, "1000"), dec("1000"), ec).Applied, "display")

			ec.Type = ContextApplication
			assert.Equal(t, tt.wantApplication, f.engine.GetDynamicPrice(ctx, simple(101, "1000"), dec("1000"), ec).Applied, "application")
		})
	}
}

func TestMatchesContext_Modes(t *testing.T) {
	t.Parallel()

	restricted := rule(1, 1, allProducts, pctUp10)
	restricted.ReferrerConditions = []byte(`{"domains":["partner.com"],"match_type":"exact"}`)
	malformed := rule(2, 1, allProducts, pctUp10)
	malformed.ReferrerConditions = []byte(`{"domains": [`)
	open := rule(3, 1, allProducts, pctUp10)

	f := newFixture(t, config.ApplyModeAlways, []store.PricingRule{restricted, malformed, open})
	idx := f.index.idx

	tests := []struct {
		name string
		id   int64
		ec   EvaluationContext
		want bool
	}{
		{"always", 1, EvaluationContext{ApplyMode: config.ApplyModeAlways}, true},
		{"payment method display", 1, EvaluationContext{ApplyMode: config.ApplyModePaymentMethod, PaymentMethod: "vibe"}, true},
		{"payment method other gateway", 1, EvaluationContext{ApplyMode: config.ApplyModePaymentMethod, PaymentMethod: "cod", Type: ContextApplication}, false},
		{"referrer matches rule domain", 1, EvaluationContext{ApplyMode: config.ApplyModeReferrer, Referrer: "https://partner.com/"}, true},
		{"referrer misses rule domain", 1, EvaluationContext{ApplyMode: config.ApplyModeReferrer, Referrer: "https://other.com/"}, false},
		{"referrer unrestricted rule", 3, EvaluationContext{ApplyMode: config.ApplyModeReferrer, Referrer: "https://other.com/"}, true},
		{"malformed referrer is unrestricted", 2, EvaluationContext{ApplyMode: config.ApplyModeReferrer, Referrer: "https://other.com/", Type: ContextApplication}, true},
		{"unknown mode", 3, EvaluationContext{ApplyMode: "sometimes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.engine.MatchesContext(idx.Rule(tt.id), tt.ec))
		})
	}

	assert.False(t, f.engine.MatchesContext(nil, EvaluationContext{}))
}

func TestGetDynamicPrice_VariationInheritsParentRules(t *testing.T) {
	t.Parallel()

	parent := &catalog.Product{ID: 200, Type: catalog.TypeVariable, CategoryIDs: []int64{15}, Price: dec("1000"), RegularPrice: dec("1000")}
	variation := &catalog.Product{ID: 201, ParentID: 200, Type: catalog.TypeVariation, Price: dec("1000"), RegularPrice: dec("1000")}

	f := newFixture(t, config.ApplyModeAlways,
		[]store.PricingRule{rule(1, 1, `{"target_type":"categories","category_ids":[15]}`, pctDown10)},
		parent, variation,
	)

	got := f.engine.GetDynamicPrice(context.Background(), variation, dec("1000"), EvaluationContext{})
	require.True(t, got.Applied)
	assert.True(t, dec("900").Equal(got.Price))

	orphan := &catalog.Product{ID: 301, ParentID: 300, Type: catalog.TypeVariation}
	assert.False(t, f.engine.GetDynamicPrice(context.Background(), orphan, dec("1000"), EvaluationContext{}).Applied)
}

func TestGetDynamicPrice_DiscountIntegration(t *testing.T) {
	t.Parallel()

	onSale := &catalog.Product{ID: 101, Type: catalog.TypeSimple, Price: dec("1000"), RegularPrice: dec("1200"), OnSale: true}

	regular := rule(1, 1, allProducts, pctDown10)
	regular.DiscountIntegration = "regular_price"
	skip := rule(2, 1, allProducts, pctDown10)
	skip.DiscountIntegration = "skip_on_sale"

	t.Run("regular price base", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, config.ApplyModeAlways, []store.PricingRule{regular})
		got := f.engine.GetDynamicPrice(context.Background(), onSale, dec("1000"), EvaluationContext{})
		require.True(t, got.Applied)
		assert.True(t, dec("1080").Equal(got.Price))
		assert.True(t, dec("1000").Equal(got.Original))
	})

	t.Run("skip on sale", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, config.ApplyModeAlways, []store.PricingRule{skip})
		assert.False(t, f.engine.GetDynamicPrice(context.Background(), onSale, dec("1000"), EvaluationContext{}).Applied)
	})
}

func TestGetDynamicPrice_DisplayOptions(t *testing.T) {
	t.Parallel()

	r := rule(1, 1, allProducts, pctDown10)
	r.DisplayOptions = []byte(`{"show_original_price":true,"badge":"Vibe deal"}`)
	f := newFixture(t, config.ApplyModeAlways, []store.PricingRule{r})

	got := f.engine.GetDynamicPrice(context.Background(), simple(101, "1000"), dec("1000"), EvaluationContext{})
	assert.True(t, got.Display.ShowOriginalPrice)
	assert.Equal(t, "Vibe deal", got.Display.Badge)
}

func TestResolveRule(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ApplyModeAlways, []store.PricingRule{
		rule(1, 5, allProducts, pctDown10),
		rule(2, 10, `{"target_type":"price_range","min_price":5000}`, pctUp10),
	})

	r := f.engine.ResolveRule(context.Background(), simple(101, "1000"), EvaluationContext{})
	require.NotNil(t, r)
	assert.Equal(t, int64(1), r.ID)

	r = f.engine.ResolveRule(context.Background(), simple(102, "9000"), EvaluationContext{})
	require.NotNil(t, r)
	assert.Equal(t, int64(2), r.ID)

	assert.Nil(t, f.engine.ResolveRule(context.Background(), nil, EvaluationContext{}))
}

func TestLineFee(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ApplyModeCombined, []store.PricingRule{rule(1, 1, allProducts, pctUp10)})
	ctx := context.Background()
	p := simple(101, "1000")

	assert.True(t, dec("300").Equal(f.engine.LineFee(ctx, p, dec("1000"), 3, EvaluationContext{PaymentMethod: "vibe"})))
	assert.True(t, f.engine.LineFee(ctx, p, dec("1000"), 3, EvaluationContext{PaymentMethod: "cod"}).IsZero())
	assert.True(t, f.engine.LineFee(ctx, p, dec("1000"), 0, EvaluationContext{PaymentMethod: "vibe"}).IsZero())
}

func TestGetDynamicPrice_StoreOutageIsNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mgr := newTestManager(t)
	repo := &flakyRepo{MemoryStore: store.NewMemoryStore(rule(1, 10, allProducts, pctUp10))}
	repo.Fail(errors.New("connection refused"))
	compiler := ruleengine.NewCompiler(repo, mgr, time.Hour, discardLogger())
	p := simple(101, "1000")
	e := NewEngine(compiler, catalog.NewMemoryCatalog(p), mgr, testConfig(config.ApplyModeAlways), discardLogger())
	ec := EvaluationContext{PaymentMethod: "vibe"}

	during := e.GetDynamicPrice(ctx, p, dec("1000"), ec)
	assert.False(t, during.Applied)
	assert.True(t, dec("1000").Equal(during.Price))

	var ids []int64
	assert.False(t, mgr.GetProductRules(ctx, 101, &ids), "rule list from an empty stand-in index is not cached")

	repo.Fail(nil)
	after := e.GetDynamicPrice(ctx, p, dec("1000"), ec)
	require.True(t, after.Applied)
	assert.False(t, after.Cached)
	assert.True(t, dec("1100").Equal(after.Price))

	again := e.GetDynamicPrice(ctx, p, dec("1000"), ec)
	assert.True(t, again.Cached, "healthy results are cached")
}

func TestGetDynamicPrice_ParentLookupFailureIsNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	parent := &catalog.Product{ID: 200, Type: catalog.TypeVariable, CategoryIDs: []int64{15}, Price: dec("1000"), RegularPrice: dec("1000")}
	variation := &catalog.Product{ID: 201, ParentID: 200, Type: catalog.TypeVariation, Price: dec("1000"), RegularPrice: dec("1000")}
	f := newFixture(t, config.ApplyModeAlways,
		[]store.PricingRule{rule(1, 1, `{"target_type":"categories","category_ids":[15]}`, pctDown10)},
		parent, variation,
	)
	cat := &flakyCatalog{MemoryCatalog: f.catalog}
	e := NewEngine(f.index, cat, f.cache, testConfig(config.ApplyModeAlways), discardLogger())

	cat.Fail(errors.New("catalog timeout"))
	assert.False(t, e.GetDynamicPrice(ctx, variation, dec("1000"), EvaluationContext{}).Applied)
	var ids []int64
	assert.False(t, f.cache.GetProductRules(ctx, 201, &ids))

	cat.Fail(nil)
	got := e.GetDynamicPrice(ctx, variation, dec("1000"), EvaluationContext{})
	require.True(t, got.Applied)
	assert.False(t, got.Cached)
	assert.True(t, dec("900").Equal(got.Price))
	assert.True(t, f.cache.GetProductRules(ctx, 201, &ids))
	assert.Equal(t, []int64{1}, ids)
}
