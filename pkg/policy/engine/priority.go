package engine

import (
	"sort"

	"ledgerline/policyforge/pkg/rulebook/ast"
)

// SortRulesByPriority returns the rules ordered by priority, highest first.
// Rules with equal priority keep their declaration order. Nil entries are
// dropped. The input slice is not modified.
func SortRulesByPriority(rules []*ast.Rule) []*ast.Rule {
	sorted := make([]*ast.Rule, 0, len(rules))
	for _, r := range rules {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}
