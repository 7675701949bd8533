// Package pricing resolves the dynamic price of a product under a visitor's
// context. Engine is stateless and safe for concurrent use; Session carries the
// per-request referrer and payment method.
package pricing

import (
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
)

// ContextType distinguishes showing a price from charging it.
type ContextType string

const (
	// ContextDisplay is used when rendering catalog and product pages.
	ContextDisplay ContextType = "display"
	// ContextApplication is used by cart totals and checkout.
	ContextApplication ContextType = "application"
)

// EvaluationContext is everything outside the product that decides whether a rule fires.
// An empty ApplyMode means the engine's configured mode.
type EvaluationContext struct {
	Referrer      string
	PaymentMethod string
	ApplyMode     string
	Type          ContextType
}

// cacheParts is the context's contribution to price cache keys.
func (c EvaluationContext) cacheParts() []string {
	return []string{
		ruleengine.NormalizeReferrer(c.Referrer),
		c.PaymentMethod,
		c.ApplyMode,
		string(c.Type),
	}
}

// withDefaults fills the apply mode and context type.
func (c EvaluationContext) withDefaults(mode string) EvaluationContext {
	if c.ApplyMode == "" {
		c.ApplyMode = mode
	}
	if c.Type == "" {
		c.Type = ContextDisplay
	}
	return c
}
