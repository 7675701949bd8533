package ruleengine

import (
	"sort"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/catalog"
)

// ApplicableRuleIDs returns the ids of rules targeting any of products, highest
// priority first and lower id first among equal priorities. Pass a variation
// together with its parent so rules on the parent's taxonomy reach it.
func (idx *CompiledIndex) ApplicableRuleIDs(products ...*catalog.Product) []int64 {
	if idx == nil || len(idx.Rules) == 0 {
		return nil
	}

	seen := make(map[int64]struct{})
	var candidates []int64
	add := func(ids []int64) {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			candidates = append(candidates, id)
		}
	}

	found := false
	for _, p := range products {
		if p == nil {
			continue
		}
		found = true
		add(idx.ProductRules[p.ID])
		for _, c := range p.CategoryIDs {
			add(idx.CategoryRules[c])
		}
		for _, t := range p.TagIDs {
			add(idx.TagRules[t])
		}
	}
	if !found {
		return nil
	}
	add(idx.GlobalRules)

	matched := candidates[:0]
	for _, id := range candidates {
		r := idx.Rules[id]
		if r == nil {
			continue
		}
		for _, p := range products {
			if r.AppliesTo(p) {
				matched = append(matched, id)
				break
			}
		}
	}

	idx.sortByPriority(matched)
	return matched
}

// sortByPriority orders ids by priority descending; equal priorities keep the lower id first.
func (idx *CompiledIndex) sortByPriority(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := idx.Rules[ids[i]], idx.Rules[ids[j]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
}
