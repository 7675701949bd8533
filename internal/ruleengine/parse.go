package ruleengine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/ruleengine/expr"
)

// Field names reported in CompiledRule.Malformed and in logs.
const (
	fieldReferrer   = "referrer_conditions"
	fieldProduct    = "product_conditions"
	fieldAdjustment = "price_adjustment"
	fieldDisplay    = "display_options"
	fieldDiscount   = "discount_integration"
)

var errEmptyBlob = errors.New("empty")

func isEmptyBlob(raw []byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// idList accepts ids as numbers or numeric strings; stores often mix both.
type idList []int64

func (l *idList) UnmarshalJSON(data []byte) error {
	var raw []json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]int64, 0, len(raw))
	for _, n := range raw {
		id, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", n)
		}
		out = append(out, id)
	}
	*l = out
	return nil
}

// stringList accepts a JSON array or a comma-separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("expected an array or a comma-separated string")
	}
	*l = strings.Split(s, ",")
	return nil
}

// parseReferrerConditions returns the unrestricted value for an empty blob.
func parseReferrerConditions(raw []byte) (ReferrerConditions, error) {
	if isEmptyBlob(raw) {
		return ReferrerConditions{}, nil
	}
	var doc struct {
		Domains   stringList `json:"domains"`
		MatchType string     `json:"match_type"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ReferrerConditions{}, err
	}

	rc := ReferrerConditions{MatchType: MatchType(strings.ToLower(strings.TrimSpace(doc.MatchType)))}
	switch rc.MatchType {
	case "":
		rc.MatchType = MatchSubdomain
	case MatchExact, MatchSubdomain, MatchContains:
	case MatchRegex:
		for _, d := range doc.Domains {
			if _, err := regexp.Compile(strings.TrimSpace(d)); err != nil {
				return ReferrerConditions{}, fmt.Errorf("invalid pattern %q: %w", d, err)
			}
		}
	default:
		return ReferrerConditions{}, fmt.Errorf("unknown match_type %q", doc.MatchType)
	}

	for _, d := range doc.Domains {
		if d = strings.TrimSpace(d); d != "" {
			rc.Domains = append(rc.Domains, d)
		}
	}
	return rc, nil
}

// parseProductConditions returns ConditionAll for an empty blob.
func parseProductConditions(raw []byte) (ConditionSpec, error) {
	if isEmptyBlob(raw) {
		return ConditionSpec{Kind: ConditionAll}, nil
	}
	var doc struct {
		TargetType  string           `json:"target_type"`
		ProductIDs  idList           `json:"product_ids"`
		CategoryIDs idList           `json:"category_ids"`
		TagIDs      idList           `json:"tag_ids"`
		Logic       string           `json:"logic"`
		MinPrice    *decimal.Decimal `json:"min_price"`
		MaxPrice    *decimal.Decimal `json:"max_price"`
		Expression  string           `json:"expression"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ConditionSpec{}, err
	}

	logic := LogicAny
	switch strings.ToLower(doc.Logic) {
	case "", "any", "or":
	case "all", "and":
		logic = LogicAll
	default:
		return ConditionSpec{}, fmt.Errorf("unknown logic %q", doc.Logic)
	}

	switch ConditionKind(strings.ToLower(doc.TargetType)) {
	case "", ConditionAll:
		return ConditionSpec{Kind: ConditionAll}, nil
	case ConditionSpecific:
		return ConditionSpec{Kind: ConditionSpecific, IDs: doc.ProductIDs}, nil
	case ConditionCategories:
		return ConditionSpec{Kind: ConditionCategories, IDs: doc.CategoryIDs, Logic: logic}, nil
	case ConditionTags:
		return ConditionSpec{Kind: ConditionTags, IDs: doc.TagIDs, Logic: logic}, nil
	case ConditionPriceRange:
		c := ConditionSpec{Kind: ConditionPriceRange}
		if doc.MinPrice != nil {
			c.MinPrice = decimal.NewNullDecimal(*doc.MinPrice)
		}
		if doc.MaxPrice != nil {
			c.MaxPrice = decimal.NewNullDecimal(*doc.MaxPrice)
		}
		if c.MinPrice.Valid && c.MaxPrice.Valid && c.MinPrice.Decimal.GreaterThan(c.MaxPrice.Decimal) {
			return ConditionSpec{}, fmt.Errorf("min_price %s exceeds max_price %s", c.MinPrice.Decimal, c.MaxPrice.Decimal)
		}
		return c, nil
	case ConditionComplex:
		e, err := expr.Parse(doc.Expression)
		if err != nil {
			return ConditionSpec{}, fmt.Errorf("expression: %w", err)
		}
		return ConditionSpec{Kind: ConditionComplex, Expression: doc.Expression, compiled: e}, nil
	}
	return ConditionSpec{}, fmt.Errorf("unknown target_type %q", doc.TargetType)
}

// parseAdjustment rejects empty blobs: a rule without an adjustment is malformed.
func parseAdjustment(raw []byte) (Adjustment, error) {
	if isEmptyBlob(raw) {
		return Adjustment{}, errEmptyBlob
	}
	var doc struct {
		Type  string          `json:"type"`
		Value decimal.Decimal `json:"value"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Adjustment{}, err
	}
	switch t := AdjustmentType(strings.ToLower(doc.Type)); t {
	case AdjustPercentage, AdjustFixed, AdjustFixedPrice:
		return Adjustment{Type: t, Value: doc.Value}, nil
	}
	return Adjustment{}, fmt.Errorf("unknown adjustment type %q", doc.Type)
}

func parseDisplayOptions(raw []byte) (DisplayOptions, error) {
	if isEmptyBlob(raw) {
		return DisplayOptions{}, nil
	}
	var d DisplayOptions
	if err := json.Unmarshal(raw, &d); err != nil {
		return DisplayOptions{}, err
	}
	d.Badge = strings.TrimSpace(d.Badge)
	return d, nil
}

func parseDiscountIntegration(s string) (DiscountIntegration, error) {
	switch d := DiscountIntegration(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DiscountOverride, nil
	case DiscountOverride, DiscountRegularPrice, DiscountSkipOnSale:
		return d, nil
	}
	return DiscountOverride, fmt.Errorf("unknown discount integration %q", s)
}
