package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var _ RuleRepository = (*MemoryStore)(nil)

// MemoryStore is a RuleRepository held in process. The worker uses it when rules
// come from a YAML file; tests use it directly.
type MemoryStore struct {
	mu    sync.RWMutex
	rules []PricingRule
}

func NewMemoryStore(rules ...PricingRule) *MemoryStore {
	s := &MemoryStore{}
	s.Replace(rules)
	return s
}

// Replace swaps the whole rule set.
func (s *MemoryStore) Replace(rules []PricingRule) {
	cp := make([]PricingRule, len(rules))
	copy(cp, rules)
	s.mu.Lock()
	s.rules = cp
	s.mu.Unlock()
}

// Upsert inserts r or replaces the rule with the same id.
func (s *MemoryStore) Upsert(r PricingRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == r.ID {
			s.rules[i] = r
			return
		}
	}
	s.rules = append(s.rules, r)
}

func (s *MemoryStore) ListActiveRules(ctx context.Context) ([]PricingRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	active := make([]PricingRule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Status == StatusActive {
			active = append(active, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].ID < active[j].ID
	})
	return active, nil
}

// yamlRule is the on-disk shape. Blob fields accept either a YAML mapping or a
// string holding raw JSON, so malformed blobs can be reproduced from a file.
type yamlRule struct {
	ID                  int64     `yaml:"id"`
	Name                string    `yaml:"name"`
	Priority            int       `yaml:"priority"`
	Status              string    `yaml:"status"`
	ReferrerConditions  yaml.Node `yaml:"referrer_conditions"`
	ProductConditions   yaml.Node `yaml:"product_conditions"`
	PriceAdjustment     yaml.Node `yaml:"price_adjustment"`
	DiscountIntegration string    `yaml:"discount_integration"`
	DisplayOptions      yaml.Node `yaml:"display_options"`
}

type yamlRuleFile struct {
	Rules []yamlRule `yaml:"rules"`
}

// LoadMemoryStore reads a YAML rule file.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := ParseRulesYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return NewMemoryStore(rules...), nil
}

// ParseRulesYAML converts a YAML rule document into PricingRule rows.
func ParseRulesYAML(data []byte) ([]PricingRule, error) {
	var file yamlRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seen := make(map[int64]struct{}, len(file.Rules))
	rules := make([]PricingRule, 0, len(file.Rules))
	for i, yr := range file.Rules {
		if yr.ID <= 0 {
			return nil, fmt.Errorf("rule #%d: id must be positive", i+1)
		}
		if _, dup := seen[yr.ID]; dup {
			return nil, fmt.Errorf("rule #%d: duplicate id %d", i+1, yr.ID)
		}
		seen[yr.ID] = struct{}{}

		r := PricingRule{
			ID:                  yr.ID,
			Name:                yr.Name,
			Priority:            yr.Priority,
			Status:              yr.Status,
			DiscountIntegration: yr.DiscountIntegration,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if r.Status == "" {
			r.Status = StatusActive
		}

		blobs := []struct {
			node *yaml.Node
			dst  *json.RawMessage
			name string
		}{
			{&yr.ReferrerConditions, &r.ReferrerConditions, "referrer_conditions"},
			{&yr.ProductConditions, &r.ProductConditions, "product_conditions"},
			{&yr.PriceAdjustment, &r.PriceAdjustment, "price_adjustment"},
			{&yr.DisplayOptions, &r.DisplayOptions, "display_options"},
		}
		for _, b := range blobs {
			raw, err := nodeToJSON(b.node)
			if err != nil {
				return nil, fmt.Errorf("rule %d %s: %w", yr.ID, b.name, err)
			}
			*b.dst = raw
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func nodeToJSON(n *yaml.Node) (json.RawMessage, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		return json.RawMessage(n.Value), nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
