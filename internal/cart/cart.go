// Package cart answers cart-level eligibility questions in a single pass over
// the cart lines, sharing one catalog batch load and one compiled index.
package cart

import (
	"sort"
	"strconv"
	"time"
)

// Processing contexts.
const (
	// ContextGatewayCheck decides whether the gateway may be offered: every line
	// must carry a matching rule.
	ContextGatewayCheck = "gateway_check"
	// ContextDisplay reports which lines are dynamically priced.
	ContextDisplay = "display"
)

// Line is one cart entry. VariationID is zero for non-variable products.
type Line struct {
	Key         string `json:"key"`
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id,omitempty"`
	Qty         int    `json:"qty"`
}

// ItemID is the id of the purchasable entity: the variation when present.
func (l Line) ItemID() int64 {
	if l.VariationID > 0 {
		return l.VariationID
	}
	return l.ProductID
}

type Cart struct {
	Lines []Line `json:"lines"`
}

func (c Cart) Empty() bool { return len(c.Lines) == 0 }

// fingerprint is the order-independent content of the cart.
func (c Cart) fingerprint() []string {
	parts := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		parts = append(parts, l.Key+"|"+
			strconv.FormatInt(l.ProductID, 10)+"|"+
			strconv.FormatInt(l.VariationID, 10)+"|"+
			strconv.Itoa(l.Qty))
	}
	sort.Strings(parts)
	return parts
}

// Options is the context an analysis runs under. Empty ApplyMode means the
// engine's configured mode; empty Context means ContextGatewayCheck.
type Options struct {
	Context       string
	PaymentMethod string
	Referrer      string
	ApplyMode     string
}

// Line outcomes reported in ItemAnalysis.Reason.
const (
	ReasonMatched         = "matched"
	ReasonNoRule          = "no_rule"
	ReasonProductNotFound = "product_not_found"
	ReasonInvalidLine     = "invalid_line"
)

// ItemAnalysis is the per-line diagnostic.
type ItemAnalysis struct {
	Key         string  `json:"key"`
	ProductID   int64   `json:"product_id"`
	VariationID int64   `json:"variation_id,omitempty"`
	HasRules    bool    `json:"has_rules"`
	RuleIDs     []int64 `json:"rule_ids,omitempty"`
	Reason      string  `json:"reason"`
}

// Stats are counters of one computed analysis.
type Stats struct {
	ProductsRequested int   `json:"products_requested"`
	ProductsLoaded    int   `json:"products_loaded"`
	IndexRules        int   `json:"index_rules"`
	DurationMicros    int64 `json:"duration_us"`
}

// Analysis is the cached result of Processor.Analyze.
type Analysis struct {
	GatewayAvailable bool           `json:"gateway_available"`
	ItemsWithRules   int            `json:"items_with_rules"`
	TotalItems       int            `json:"total_items"`
	Items            []ItemAnalysis `json:"items"`
	Stats            Stats          `json:"stats"`
	ProcessedAt      time.Time      `json:"processed_at"`
	// Cached is set when the analysis came from the cache.
	Cached bool `json:"-"`
}
