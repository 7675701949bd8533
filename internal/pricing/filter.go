package pricing

import (
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/catalog"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/config"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
)

// MatchesContext applies the apply-mode gate to one rule.
//
//	mode            display                          application
//	always          yes                              yes
//	combined        referrer in target domains       payment method is the gateway
//	payment_method  payment method is the gateway    payment method is the gateway
//	referrer        rule's domain list (or none)     rule's domain list (or none)
//
// Unknown modes match nothing.
func (e *Engine) MatchesContext(rule *ruleengine.CompiledRule, ec EvaluationContext) bool {
	if rule == nil {
		return false
	}
	ec = ec.withDefaults(e.cfg.ApplyMode)

	switch ec.ApplyMode {
	case config.ApplyModeAlways:
		return true
	case config.ApplyModeCombined:
		if ec.Type == ContextApplication {
			return e.isGateway(ec.PaymentMethod)
		}
		return ruleengine.MatchReferrer(e.cfg.TargetDomains, ruleengine.MatchSubdomain, ec.Referrer)
	case config.ApplyModePaymentMethod:
		return e.isGateway(ec.PaymentMethod)
	case config.ApplyModeReferrer:
		return rule.Referrer.Matches(ec.Referrer)
	}
	return false
}

func (e *Engine) isGateway(paymentMethod string) bool {
	return paymentMethod != "" && paymentMethod == e.cfg.GatewayID
}

// MatchingRules returns the rules of idx that target any of products and pass
// the context gate, in resolution order.
func (e *Engine) MatchingRules(idx *ruleengine.CompiledIndex, ec EvaluationContext, products ...*catalog.Product) []int64 {
	ids := idx.ApplicableRuleIDs(products...)
	out := ids[:0]
	for _, id := range ids {
		if e.MatchesContext(idx.Rule(id), ec) {
			out = append(out, id)
		}
	}
	return out
}
