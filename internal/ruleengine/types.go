// Package ruleengine compiles stored pricing rules into an index that answers
// "which rules target this product" with a handful of map lookups.
package ruleengine

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/catalog"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine/expr"
)

// ConditionKind discriminates ConditionSpec.
type ConditionKind string

const (
	// ConditionNoRestriction is what an unreadable product_conditions blob compiles to.
	ConditionNoRestriction ConditionKind = "no_restriction"
	ConditionAll           ConditionKind = "all"
	ConditionSpecific      ConditionKind = "specific"
	ConditionCategories    ConditionKind = "categories"
	ConditionTags          ConditionKind = "tags"
	ConditionPriceRange    ConditionKind = "price_range"
	ConditionComplex       ConditionKind = "complex"
)

// TaxonomyLogic says whether a product needs any or all of the listed terms.
type TaxonomyLogic string

const (
	LogicAny TaxonomyLogic = "any"
	LogicAll TaxonomyLogic = "all"
)

// ConditionSpec is the parsed product targeting of a rule. Only the fields of
// the active Kind are meaningful.
type ConditionSpec struct {
	Kind ConditionKind `json:"kind"`

	// IDs holds product ids (specific), category ids or tag ids.
	IDs   []int64       `json:"ids,omitempty"`
	Logic TaxonomyLogic `json:"logic,omitempty"`

	MinPrice decimal.NullDecimal `json:"min_price,omitempty"`
	MaxPrice decimal.NullDecimal `json:"max_price,omitempty"`

	Expression string `json:"expression,omitempty"`
	compiled   *expr.Expression
}

// UnmarshalJSON restores the parsed expression of complex conditions read back from cache.
func (c *ConditionSpec) UnmarshalJSON(data []byte) error {
	type plain ConditionSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = ConditionSpec(p)
	if c.Kind == ConditionComplex {
		e, err := expr.Parse(c.Expression)
		if err != nil {
			return err
		}
		c.compiled = e
	}
	return nil
}

// Matches reports whether p satisfies the condition.
func (c *ConditionSpec) Matches(p *catalog.Product) bool {
	if p == nil {
		return false
	}
	switch c.Kind {
	case ConditionNoRestriction, ConditionAll:
		return true
	case ConditionSpecific:
		return containsID(c.IDs, p.ID)
	case ConditionCategories:
		return matchTaxonomy(c.IDs, p.CategoryIDs, c.Logic)
	case ConditionTags:
		return matchTaxonomy(c.IDs, p.TagIDs, c.Logic)
	case ConditionPriceRange:
		if c.MinPrice.Valid && p.Price.LessThan(c.MinPrice.Decimal) {
			return false
		}
		if c.MaxPrice.Valid && p.Price.GreaterThan(c.MaxPrice.Decimal) {
			return false
		}
		return true
	case ConditionComplex:
		return c.compiled != nil && c.compiled.Eval(factsOf(p))
	}
	return false
}

func matchTaxonomy(want, have []int64, logic TaxonomyLogic) bool {
	if len(want) == 0 {
		return false
	}
	if logic == LogicAll {
		for _, id := range want {
			if !containsID(have, id) {
				return false
			}
		}
		return true
	}
	for _, id := range want {
		if containsID(have, id) {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func factsOf(p *catalog.Product) expr.Facts {
	return expr.Facts{
		ProductID:   p.ID,
		ParentID:    p.ParentID,
		Type:        p.Type,
		CategoryIDs: p.CategoryIDs,
		TagIDs:      p.TagIDs,
		Price:       p.Price,
		OnSale:      p.OnSale,
	}
}

// AdjustmentType selects how a rule changes the price.
type AdjustmentType string

const (
	AdjustPercentage AdjustmentType = "percentage"
	AdjustFixed      AdjustmentType = "fixed"
	AdjustFixedPrice AdjustmentType = "fixed_price"
)

// Adjustment is the parsed price_adjustment blob.
type Adjustment struct {
	Type  AdjustmentType  `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// DiscountIntegration says how a rule interacts with store-side sale prices.
type DiscountIntegration string

const (
	// DiscountOverride adjusts whatever price the caller passes in.
	DiscountOverride DiscountIntegration = "override"
	// DiscountRegularPrice adjusts the product's regular price, ignoring any sale.
	DiscountRegularPrice DiscountIntegration = "regular_price"
	// DiscountSkipOnSale keeps the rule away from products currently on sale.
	DiscountSkipOnSale DiscountIntegration = "skip_on_sale"
)

// DisplayOptions are hints for the price display layer.
type DisplayOptions struct {
	ShowOriginalPrice bool   `json:"show_original_price"`
	Badge             string `json:"badge,omitempty"`
}

// CompiledRule is one active rule with every blob parsed.
type CompiledRule struct {
	ID                  int64               `json:"id"`
	Name                string              `json:"name"`
	Priority            int                 `json:"priority"`
	Referrer            ReferrerConditions  `json:"referrer"`
	Conditions          ConditionSpec       `json:"conditions"`
	Adjustment          Adjustment          `json:"adjustment"`
	DiscountIntegration DiscountIntegration `json:"discount_integration"`
	Display             DisplayOptions      `json:"display"`

	// Hash changes whenever any stored field of the rule changes.
	Hash string `json:"hash"`
	// Malformed lists the blobs that could not be parsed and fell back to defaults.
	Malformed []string `json:"malformed,omitempty"`
}

// AppliesTo reports whether the rule targets p, honouring skip_on_sale.
func (r *CompiledRule) AppliesTo(p *catalog.Product) bool {
	if p == nil {
		return false
	}
	if r.DiscountIntegration == DiscountSkipOnSale && p.OnSale {
		return false
	}
	return r.Conditions.Matches(p)
}

// CompiledIndex maps targeting dimensions to rule ids. Every id in a bucket is a
// key of Rules. An index is never mutated after Compile returns it.
type CompiledIndex struct {
	ProductRules  map[int64][]int64       `json:"product_rules"`
	CategoryRules map[int64][]int64       `json:"category_rules"`
	TagRules      map[int64][]int64       `json:"tag_rules"`
	GlobalRules   []int64                 `json:"global_rules"`
	Rules         map[int64]*CompiledRule `json:"rules"`
	CompiledAt    time.Time               `json:"compiled_at"`
	// Version digests every rule hash, in index order.
	Version string `json:"version"`
	// Degraded marks the empty stand-in served while the rule store is
	// unreachable. Nothing derived from it may be cached.
	Degraded bool `json:"-"`
}

// NewEmptyIndex returns an index that matches nothing.
func NewEmptyIndex(at time.Time) *CompiledIndex {
	return &CompiledIndex{
		ProductRules:  map[int64][]int64{},
		CategoryRules: map[int64][]int64{},
		TagRules:      map[int64][]int64{},
		GlobalRules:   []int64{},
		Rules:         map[int64]*CompiledRule{},
		CompiledAt:    at,
	}
}

// Cacheable reports whether results computed from idx may be stored in the
// shared caches.
func (idx *CompiledIndex) Cacheable() bool {
	return idx != nil && !idx.Degraded
}

// Rule returns the compiled rule with id, or nil.
func (idx *CompiledIndex) Rule(id int64) *CompiledRule {
	if idx == nil {
		return nil
	}
	return idx.Rules[id]
}

// Len is the number of compiled rules.
func (idx *CompiledIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Rules)
}
