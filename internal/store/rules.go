// Package store reads pricing rules from their durable home. Rules are authored
// elsewhere; the engine only ever lists the active ones.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var _ RuleRepository = (*PostgresStore)(nil)

// Rule statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// PricingRule mirrors one row of pricing_rules. Condition, adjustment and display
// columns are left as raw JSON; the rule compiler owns their parsing.
type PricingRule struct {
	ID                  int64
	Name                string
	Priority            int
	Status              string
	ReferrerConditions  json.RawMessage
	ProductConditions   json.RawMessage
	PriceAdjustment     json.RawMessage
	DiscountIntegration string
	DisplayOptions      json.RawMessage
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RuleRepository lists active rules, priority descending then id ascending.
type RuleRepository interface {
	ListActiveRules(ctx context.Context) ([]PricingRule, error)
}

// Querier is the read side of *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore is the RuleRepository backed by the pricing_rules table.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

const listActiveRulesSQL = `
	SELECT id, name, priority, status,
	       referrer_conditions, product_conditions, price_adjustment,
	       discount_integration, display_options, created_at, updated_at
	FROM pricing_rules
	WHERE status = 'active'
	ORDER BY priority DESC, id ASC
`

func (s *PostgresStore) ListActiveRules(ctx context.Context) ([]PricingRule, error) {
	rows, err := s.db.Query(ctx, listActiveRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	var rules []PricingRule
	for rows.Next() {
		var (
			r                               PricingRule
			referrer, product, adj, display []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Priority, &r.Status,
			&referrer, &product, &adj,
			&r.DiscountIntegration, &display, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pricing rule: %w", err)
		}
		r.ReferrerConditions = referrer
		r.ProductConditions = product
		r.PriceAdjustment = adj
		r.DisplayOptions = display
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return rules, nil
}
