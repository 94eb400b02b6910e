package condition

import (
	"fmt"
	"log/slog"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/rulebook/ast"
)

// DefaultMaxDepth bounds condition nesting when no limit is configured.
const DefaultMaxDepth = 10

// Result is the outcome of evaluating one condition tree.
type Result struct {
	Matched     bool
	Diagnostics []Diagnostic
}

// Malformed reports whether the tree failed structural validation.
func (r Result) Malformed() bool {
	return len(r.Diagnostics) > 0
}

// Evaluator evaluates condition trees. It is safe for concurrent use.
type Evaluator struct {
	logger   *slog.Logger
	maxDepth int
}

// NewEvaluator creates an evaluator. A maxDepth of zero selects DefaultMaxDepth.
func NewEvaluator(logger *slog.Logger, maxDepth int) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Evaluator{
		logger:   logger.With("component", "condition"),
		maxDepth: maxDepth,
	}
}

var defaultEvaluator = NewEvaluator(slog.Default(), DefaultMaxDepth)

// Evaluate evaluates cond with the default evaluator.
func Evaluate(cond *ast.Condition, set answers.Set) Result {
	return defaultEvaluator.Evaluate(cond, set)
}

// Validate validates cond with the default evaluator.
func Validate(cond *ast.Condition) []Diagnostic {
	return defaultEvaluator.Validate(cond)
}

// Evaluate validates cond and, if it is well formed, evaluates it against set.
// A nil condition always matches.
func (e *Evaluator) Evaluate(cond *ast.Condition, set answers.Set) Result {
	if cond == nil {
		return Result{Matched: true}
	}

	if diags := e.Validate(cond); len(diags) > 0 {
		e.logger.Debug("malformed condition evaluates false",
			"diagnostics", Summarize(diags),
		)
		return Result{Matched: false, Diagnostics: diags}
	}

	return Result{Matched: e.match(cond, set)}
}

// Validate returns every structural problem in the tree, in traversal order.
func (e *Evaluator) Validate(cond *ast.Condition) []Diagnostic {
	if cond == nil {
		return nil
	}
	var diags []Diagnostic
	e.validate(cond, 1, &diags)
	return diags
}

func (e *Evaluator) validate(cond *ast.Condition, depth int, diags *[]Diagnostic) {
	if cond == nil {
		*diags = append(*diags, Diagnostic{
			Code:    CodeNilNode,
			Message: "condition branch contains an empty child",
		})
		return
	}

	if depth > e.maxDepth {
		*diags = append(*diags, Diagnostic{
			Code:     CodeTooDeep,
			Message:  fmt.Sprintf("condition nesting exceeds maximum depth %d", e.maxDepth),
			Location: cond.Location,
		})
		return
	}

	switch cond.Kind {
	case ast.ConditionLeaf:
		e.validateLeaf(cond, diags)

	case ast.ConditionAll, ast.ConditionAny:
		if len(cond.Children) == 0 {
			*diags = append(*diags, Diagnostic{
				Code:     CodeEmptyBranch,
				Message:  fmt.Sprintf("%s branch has no conditions", cond.Kind),
				Location: cond.Location,
			})
		}
		for _, child := range cond.Children {
			e.validate(child, depth+1, diags)
		}

	default:
		*diags = append(*diags, Diagnostic{
			Code:     CodeUnknownKind,
			Message:  fmt.Sprintf("unsupported condition kind %q (use all or any)", cond.Kind),
			Location: cond.Location,
		})
	}
}

func (e *Evaluator) validateLeaf(cond *ast.Condition, diags *[]Diagnostic) {
	if cond.Field == "" {
		*diags = append(*diags, Diagnostic{
			Code:     CodeMissingField,
			Message:  "condition has no field name",
			Location: cond.Location,
		})
	}

	if !cond.Operator.IsValid() {
		msg := fmt.Sprintf("unknown operator %q", cond.Operator)
		if cond.Operator == "" {
			msg = "condition has no operator"
		}
		*diags = append(*diags, Diagnostic{
			Code:     CodeUnknownOperator,
			Message:  msg,
			Field:    cond.Field,
			Location: cond.Location,
		})
	}

	switch cond.Operator {
	case ast.OperatorGreaterThan, ast.OperatorLessThan, ast.OperatorIncludes:
		if cond.Value.IsNull() {
			*diags = append(*diags, Diagnostic{
				Code:     CodeMissingValue,
				Message:  fmt.Sprintf("%s condition has no value", cond.Operator),
				Field:    cond.Field,
				Location: cond.Location,
			})
		}
	}

	if len(cond.Children) > 0 {
		*diags = append(*diags, Diagnostic{
			Code:     CodeLeafChildren,
			Message:  "comparison condition cannot have children",
			Field:    cond.Field,
			Location: cond.Location,
		})
	}
}

// match evaluates a tree that has already passed validation.
func (e *Evaluator) match(cond *ast.Condition, set answers.Set) bool {
	switch cond.Kind {
	case ast.ConditionAll:
		for _, child := range cond.Children {
			if !e.match(child, set) {
				return false
			}
		}
		return true

	case ast.ConditionAny:
		for _, child := range cond.Children {
			if e.match(child, set) {
				return true
			}
		}
		return false

	default:
		return e.matchLeaf(cond, set)
	}
}

func (e *Evaluator) matchLeaf(cond *ast.Condition, set answers.Set) bool {
	actual, ok := set.Lookup(cond.Field)
	if !ok {
		e.logger.Debug("field not present, condition is false",
			"field", cond.Field,
			"operator", cond.Operator,
		)
		return false
	}

	matched := evaluateOperator(cond.Operator, actual, cond.Value)

	e.logger.Debug("condition evaluated",
		"field", cond.Field,
		"operator", cond.Operator,
		"expected", cond.Value,
		"actual", actual,
		"matched", matched,
	)
	return matched
}
