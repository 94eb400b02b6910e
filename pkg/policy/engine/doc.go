// Package engine evaluates a template's rules against a firm's answers and
// produces a DecisionSet: which clauses are included, excluded or suggested,
// the variables rules derived, and an audit log of which rules fired.
//
// # Evaluation Flow
//
//	Rules + Answers
//	       ↓
//	Stable sort by priority (descending, declaration order on ties)
//	       ↓
//	For each enabled rule:
//	  Evaluate condition (fail-closed)
//	    malformed → record error firing, continue
//	    true      → apply actions, record fired
//	       ↓
//	Reconcile:
//	  1. excluded removes from included and suggested
//	  2. included removes from suggested
//	  3. mandatory clauses forced into included, out of excluded/suggested
//	       ↓
//	DecisionSet
//
// Evaluation is pure: identical rules, clauses and answers always produce an
// identical DecisionSet, including the order of every list and the rules_fired
// log. Nothing in evaluation returns an error except context cancellation.
//
// # Basic Usage
//
//	eng := engine.New(engine.DefaultConfig(), logger)
//	decision, err := eng.EvaluateTemplate(ctx, tmpl, answers)
//	if err != nil {
//	    return err // context cancelled
//	}
//	for _, code := range decision.Included {
//	    fmt.Println(code)
//	}
//
// # Mandatory Clauses
//
// A mandatory clause is always included even when a rule excludes it. Each such
// collision is recorded in DecisionSet.Conflicts and logged at warn level so the
// override stays visible to reviewers.
package engine
