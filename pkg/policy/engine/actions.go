package engine

import (
	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/rulebook/ast"
)

// state accumulates raw action effects before reconciliation.
type state struct {
	included   []string
	excluded   []string
	suggested  []Suggestion
	variables  answers.Set
	rulesFired []Firing

	// rule IDs per code, for conflict records
	includedBy map[string][]string
	excludedBy map[string][]string
}

func newState() *state {
	return &state{
		variables:  answers.Set{},
		includedBy: make(map[string][]string),
		excludedBy: make(map[string][]string),
	}
}

func (s *state) fire(f Firing) {
	s.rulesFired = append(s.rulesFired, f)
}

func (s *state) apply(rule *ast.Rule, action *ast.Action, set answers.Set) {
	if action == nil {
		return
	}
	switch action.Type {
	case ast.ActionInclude:
		for _, code := range action.Clauses {
			s.included = appendUnique(s.included, code)
			s.includedBy[code] = appendUnique(s.includedBy[code], rule.ID)
		}

	case ast.ActionExclude:
		for _, code := range action.Clauses {
			s.excluded = appendUnique(s.excluded, code)
			s.excludedBy[code] = appendUnique(s.excludedBy[code], rule.ID)
		}

	case ast.ActionSuggest:
		for _, code := range action.Clauses {
			if indexSuggestion(s.suggested, code) >= 0 {
				continue
			}
			s.suggested = append(s.suggested, Suggestion{Code: code, Reason: action.Reason, RuleID: rule.ID})
		}

	case ast.ActionSetVariable:
		if v, ok := resolveVariable(action, set); ok {
			s.variables[action.Variable] = v
		}
	}
}

// resolveVariable returns the value a set_variable action binds. A literal
// value wins; otherwise the answer at From, falling back to Default when the
// answer is missing or blank.
func resolveVariable(action *ast.Action, set answers.Set) (answers.Value, bool) {
	if action.Variable == "" {
		return answers.Value{}, false
	}
	if action.Value != nil {
		return *action.Value, true
	}
	if action.From != "" {
		if v, ok := set.Lookup(action.From); ok && !v.IsBlank() {
			return v, true
		}
	}
	if action.Default != nil {
		return *action.Default, true
	}
	return answers.Value{}, false
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}

func indexSuggestion(list []Suggestion, code string) int {
	for i, s := range list {
		if s.Code == code {
			return i
		}
	}
	return -1
}
