package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
)

var hundred = decimal.NewFromInt(100)

// Adjust applies adj to original, clamps at zero and rounds half away from zero
// to precision decimals.
//
//	percentage   original * (1 + v/100), or original * (1 - |v|/100) for negative v
//	fixed        original + v
//	fixed_price  v
func Adjust(adj ruleengine.Adjustment, original decimal.Decimal, precision int32) decimal.Decimal {
	var out decimal.Decimal
	switch adj.Type {
	case ruleengine.AdjustFixed:
		out = original.Add(adj.Value)
	case ruleengine.AdjustFixedPrice:
		out = adj.Value
	case ruleengine.AdjustPercentage:
		if adj.Value.Sign() >= 0 {
			out = original.Mul(decimal.NewFromInt(1).Add(adj.Value.Div(hundred)))
		} else {
			out = original.Mul(decimal.NewFromInt(1).Sub(adj.Value.Abs().Div(hundred)))
		}
	default:
		out = original
	}
	if out.Sign() < 0 {
		out = decimal.Zero
	}
	return out.Round(precision)
}
