package pricing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/catalog"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/validation"
)

// Session holds the referrer and payment method of one request. It is not safe for
// concurrent use and must not outlive the request.
type Session struct {
	id            string
	engine        *Engine
	logger        *slog.Logger
	referrer      string
	paymentMethod string

	index  *ruleengine.CompiledIndex
	prices map[priceMemoKey]PriceResult
}

type priceMemoKey struct {
	productID int64
	original  string
	ctxType   ContextType
}

// NewSession starts a request-scoped session on engine.
func (e *Engine) NewSession(referrer, paymentMethod string) *Session {
	validation.AssertNotNil(e, "pricing engine")
	id := uuid.NewString()
	return &Session{
		id:            id,
		engine:        e,
		logger:        e.logger.With(slog.String("session_id", id)),
		referrer:      referrer,
		paymentMethod: paymentMethod,
		prices:        make(map[priceMemoKey]PriceResult),
	}
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Referrer() string      { return s.referrer }
func (s *Session) PaymentMethod() string { return s.paymentMethod }

// SetReferrer changes the referrer and drops memoized prices when it differs.
func (s *Session) SetReferrer(referrer string) {
	if referrer == s.referrer {
		return
	}
	s.referrer = referrer
	s.resetPrices()
}

// SetPaymentMethod changes the payment method and drops memoized prices when it differs.
// Shared cache entries are keyed on the payment method, so they stay valid.
func (s *Session) SetPaymentMethod(paymentMethod string) {
	if paymentMethod == s.paymentMethod {
		return
	}
	s.logger.Debug("payment method changed",
		slog.String("from", s.paymentMethod),
		slog.String("to", paymentMethod),
	)
	s.paymentMethod = paymentMethod
	s.resetPrices()
}

func (s *Session) resetPrices() {
	clear(s.prices)
}

// Context builds the evaluation context for ctxType from the session state.
func (s *Session) Context(ctxType ContextType) EvaluationContext {
	return EvaluationContext{
		Referrer:      s.referrer,
		PaymentMethod: s.paymentMethod,
		ApplyMode:     s.engine.cfg.ApplyMode,
		Type:          ctxType,
	}
}

// Index returns the compiled index, fetched at most once per session.
func (s *Session) Index(ctx context.Context) *ruleengine.CompiledIndex {
	if s.index == nil {
		s.index = s.engine.Index(ctx)
	}
	return s.index
}

// GetDynamicPrice resolves the price of product under the session's context.
func (s *Session) GetDynamicPrice(ctx context.Context, product *catalog.Product, original decimal.Decimal, ctxType ContextType) PriceResult {
	if ctxType == "" {
		ctxType = ContextDisplay
	}
	if product == nil || product.ID <= 0 || original.Sign() <= 0 {
		return notApplicable(original)
	}

	memo := priceMemoKey{productID: product.ID, original: original.String(), ctxType: ctxType}
	if res, ok := s.prices[memo]; ok {
		return res
	}
	res := s.engine.getDynamicPrice(ctx, s.Index(ctx), product, original, s.Context(ctxType))
	s.prices[memo] = res
	return res
}

// HasApplicableRulesForProduct reports whether a rule fires for product when paying
// with paymentMethod. The session's payment method is restored on return, including
// when evaluation panics.
func (s *Session) HasApplicableRulesForProduct(ctx context.Context, product *catalog.Product, paymentMethod string) bool {
	if product == nil || product.ID <= 0 {
		return false
	}
	restore := s.overridePaymentMethod(paymentMethod)
	defer restore()

	idx := s.Index(ctx)
	products := []*catalog.Product{product}
	if product.IsVariation() {
		if parent, err := s.engine.catalog.GetProduct(ctx, product.ParentID); err == nil {
			products = append(products, parent)
		}
	}
	return len(s.engine.MatchingRules(idx, s.Context(ContextApplication), products...)) > 0
}

// overridePaymentMethod swaps in paymentMethod and returns the func that puts the
// previous value and memo back.
func (s *Session) overridePaymentMethod(paymentMethod string) func() {
	prevMethod := s.paymentMethod
	prevPrices := s.prices
	s.paymentMethod = paymentMethod
	if paymentMethod != prevMethod {
		s.prices = make(map[priceMemoKey]PriceResult)
	}
	return func() {
		s.paymentMethod = prevMethod
		s.prices = prevPrices
	}
}
