package ast

import "ledgerline/policyforge/pkg/answers"

// ActionType is what a rule does when its condition holds.
type ActionType string

const (
	ActionInclude     ActionType = "include"      // Add clause codes to the policy
	ActionExclude     ActionType = "exclude"      // Keep clause codes out of the policy
	ActionSuggest     ActionType = "suggest"      // Offer clause codes to a reviewer
	ActionSetVariable ActionType = "set_variable" // Bind a template variable
)

// ActionTypes lists every supported action type.
var ActionTypes = []ActionType{ActionInclude, ActionExclude, ActionSuggest, ActionSetVariable}

// IsValid reports whether t is a known action type.
func (t ActionType) IsValid() bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Action is one effect of a fired rule.
type Action struct {
	Type ActionType

	// include / exclude / suggest
	Clauses []string
	Reason  string // suggest only

	// set_variable: the variable takes Value, or the answer named by From.
	// Default applies when From is missing or blank.
	Variable string
	Value    *answers.Value
	From     string
	Default  *answers.Value

	Location Location
}

// Rule is a prioritised condition with the actions it triggers.
// Higher priorities are evaluated first; ties keep declaration order.
type Rule struct {
	ID          string
	Description string
	Priority    int
	Enabled     bool
	Condition   *Condition // nil means the rule always fires
	Actions     []*Action
	Location    Location
}

// IsEnabled returns true if the rule takes part in evaluation.
func (r *Rule) IsEnabled() bool {
	return r.Enabled
}

// IsUnconditional returns true if the rule has no condition.
func (r *Rule) IsUnconditional() bool {
	return r.Condition == nil
}

// ActionsByType returns the rule's actions of the given type.
func (r *Rule) ActionsByType(actionType ActionType) []*Action {
	var result []*Action
	for _, action := range r.Actions {
		if action.Type == actionType {
			result = append(result, action)
		}
	}
	return result
}
