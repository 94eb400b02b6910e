package engine

import (
	"time"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/policy/condition"
)

// Outcome is the result of evaluating one rule.
type Outcome string

const (
	// OutcomeFired means the condition held and the actions were applied.
	OutcomeFired Outcome = "fired"

	// OutcomeError means the rule was skipped because its condition is
	// malformed or it exceeded the rule limit.
	OutcomeError Outcome = "error"

	// OutcomeNotMatched means the condition evaluated false. Only traced.
	OutcomeNotMatched Outcome = "not_matched"

	// OutcomeDisabled means the rule is disabled. Only traced.
	OutcomeDisabled Outcome = "disabled"
)

// DecisionSet is the engine's output for one evaluation.
//
// Included, Excluded and Suggested are disjoint. A code in Excluded never
// appears in Included or Suggested, and every mandatory clause appears in
// Included.
type DecisionSet struct {
	// Included clause codes, in the order rules included them, followed by
	// mandatory clauses no rule included.
	Included []string `json:"included"`

	// Excluded clause codes, in the order rules excluded them.
	Excluded []string `json:"excluded"`

	// Suggested clauses with the reason of the first rule that suggested them.
	Suggested []Suggestion `json:"suggested"`

	// Variables set by set_variable actions. Later rules overwrite earlier ones.
	Variables answers.Set `json:"variables"`

	// RulesFired is the audit log of rules that fired or errored, in
	// evaluation order.
	RulesFired []Firing `json:"rules_fired"`

	// Conflicts records every reconciliation that overrode a rule's action.
	Conflicts []Conflict `json:"conflicts,omitempty"`

	// Trace records every rule evaluation when tracing is enabled.
	Trace *Trace `json:"trace,omitempty"`
}

// Suggestion is a clause offered to a human reviewer.
type Suggestion struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
	RuleID string `json:"rule_id"`
}

// Firing is one entry in the rules_fired audit log.
type Firing struct {
	RuleID      string                 `json:"rule_id"`
	Priority    int                    `json:"priority"`
	Outcome     Outcome                `json:"outcome"`
	Error       string                 `json:"error,omitempty"`
	Diagnostics []condition.Diagnostic `json:"diagnostics,omitempty"`
}

// ConflictResolution names how reconciliation settled a collision.
type ConflictResolution string

const (
	// ResolutionExclusionWins: a clause both included and excluded by rules
	// stays excluded.
	ResolutionExclusionWins ConflictResolution = "exclusion_overrides_inclusion"

	// ResolutionMandatoryWins: a mandatory clause excluded by a rule is
	// included anyway.
	ResolutionMandatoryWins ConflictResolution = "mandatory_overrides_exclusion"
)

// Conflict records a clause whose rule actions were overridden.
type Conflict struct {
	Code       string             `json:"code"`
	Resolution ConflictResolution `json:"resolution"`
	RuleIDs    []string           `json:"rule_ids"`
}

// Trace records every rule evaluation for debugging.
type Trace struct {
	Steps     []*TraceStep  `json:"steps"`
	TotalTime time.Duration `json:"total_time"`
}

// TraceStep is one traced rule evaluation.
type TraceStep struct {
	RuleID   string        `json:"rule_id"`
	Priority int           `json:"priority"`
	Outcome  Outcome       `json:"outcome"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Suggestion returns the suggestion for code, if any.
func (d *DecisionSet) Suggestion(code string) (Suggestion, bool) {
	for _, s := range d.Suggested {
		if s.Code == code {
			return s, true
		}
	}
	return Suggestion{}, false
}

// FiredRuleIDs returns the IDs of rules whose outcome is fired.
func (d *DecisionSet) FiredRuleIDs() []string {
	var ids []string
	for _, f := range d.RulesFired {
		if f.Outcome == OutcomeFired {
			ids = append(ids, f.RuleID)
		}
	}
	return ids
}

// ErroredRuleIDs returns the IDs of rules recorded with an error outcome.
func (d *DecisionSet) ErroredRuleIDs() []string {
	var ids []string
	for _, f := range d.RulesFired {
		if f.Outcome == OutcomeError {
			ids = append(ids, f.RuleID)
		}
	}
	return ids
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
