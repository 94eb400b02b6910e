package engine

import (
	"ledgerline/policyforge/pkg/rulebook/ast"
)

// reconcile turns raw action effects into a consistent DecisionSet.
func (e *Engine) reconcile(st *state, library []*ast.Clause) *DecisionSet {
	mandatory := make(map[string]bool)
	var mandatoryOrder []string
	for _, c := range library {
		if c != nil && c.Mandatory && !mandatory[c.Code] {
			mandatory[c.Code] = true
			mandatoryOrder = append(mandatoryOrder, c.Code)
		}
	}

	d := &DecisionSet{
		Included:   []string{},
		Excluded:   []string{},
		Suggested:  []Suggestion{},
		Variables:  st.variables,
		RulesFired: st.rulesFired,
	}
	if d.RulesFired == nil {
		d.RulesFired = []Firing{}
	}

	excluded := make(map[string]bool, len(st.excluded))
	for _, code := range st.excluded {
		excluded[code] = true
	}

	// Exclusion beats inclusion; mandatory codes are settled below.
	for _, code := range st.included {
		if excluded[code] && !mandatory[code] {
			d.Conflicts = append(d.Conflicts, Conflict{
				Code:       code,
				Resolution: ResolutionExclusionWins,
				RuleIDs:    mergeIDs(st.includedBy[code], st.excludedBy[code]),
			})
			continue
		}
		d.Included = append(d.Included, code)
	}

	for _, code := range st.excluded {
		if mandatory[code] {
			e.logger.Warn("mandatory clause excluded by rule, keeping it",
				"clause", code,
				"rules", st.excludedBy[code],
			)
			d.Conflicts = append(d.Conflicts, Conflict{
				Code:       code,
				Resolution: ResolutionMandatoryWins,
				RuleIDs:    append([]string(nil), st.excludedBy[code]...),
			})
			continue
		}
		d.Excluded = append(d.Excluded, code)
	}

	for _, code := range mandatoryOrder {
		d.Included = appendUnique(d.Included, code)
	}

	for _, s := range st.suggested {
		if excluded[s.Code] && !mandatory[s.Code] {
			continue
		}
		if contains(d.Included, s.Code) {
			continue
		}
		d.Suggested = append(d.Suggested, s)
	}

	return d
}

func mergeIDs(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, id := range b {
		out = appendUnique(out, id)
	}
	return out
}
