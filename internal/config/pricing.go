package config

import (
	"fmt"
	"strings"
	"time"
)

// Apply modes understood by the pricing engine.
const (
	ApplyModeAlways        = "always"
	ApplyModeCombined      = "combined"
	ApplyModePaymentMethod = "payment_method"
	ApplyModeReferrer      = "referrer"
)

// PricingConfig holds the store-wide settings of the dynamic pricing engine.
type PricingConfig struct {
	// ApplyMode selects which context signals gate rule matching.
	ApplyMode string `envconfig:"APPLY_MODE" default:"combined" validate:"oneof=always combined payment_method referrer"`

	// TargetDomains are the referrer domains that activate display pricing in combined mode.
	TargetDomains []string `envconfig:"TARGET_DOMAINS" default:"vibe.ir"`

	// GatewayID is the payment method id of the Vibe gateway.
	GatewayID string `envconfig:"GATEWAY_ID" default:"vibe" validate:"required"`

	// CurrencyPrecision is the number of decimals prices are rounded to.
	CurrencyPrecision int32 `envconfig:"CURRENCY_PRECISION" default:"0" validate:"min=0,max=8"`

	IndexTTL        time.Duration `envconfig:"INDEX_TTL" default:"6h"`
	ProductRulesTTL time.Duration `envconfig:"PRODUCT_RULES_TTL" default:"1h"`
	PriceTTL        time.Duration `envconfig:"PRICE_TTL" default:"30m"`
	CartTTL         time.Duration `envconfig:"CART_TTL" default:"30m"`
}

// Validate checks TTLs and target domains.
func (c *PricingConfig) Validate() error {
	ttls := map[string]time.Duration{
		"index":         c.IndexTTL,
		"product rules": c.ProductRulesTTL,
		"price":         c.PriceTTL,
		"cart":          c.CartTTL,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("pricing %s TTL must be positive, got %s", name, ttl)
		}
	}

	for _, d := range c.TargetDomains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("pricing target domains cannot contain empty entries")
		}
	}

	if c.ApplyMode == ApplyModeCombined && len(c.TargetDomains) == 0 {
		return fmt.Errorf("combined apply mode requires at least one target domain")
	}

	return nil
}
