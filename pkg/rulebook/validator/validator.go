package validator

import (
	"ledgerline/policyforge/pkg/policy/condition"
	"ledgerline/policyforge/pkg/rulebook/ast"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
)

// Validator orchestrates the lint passes.
type Validator struct {
	evaluator *condition.Evaluator
	strict    bool
}

// NewValidator creates a validator using the default condition depth limit.
func NewValidator() *Validator {
	return &Validator{evaluator: condition.NewEvaluator(nil, condition.DefaultMaxDepth)}
}

// WithMaxDepth sets the condition nesting limit checked by the conditions pass.
func (v *Validator) WithMaxDepth(depth int) *Validator {
	v.evaluator = condition.NewEvaluator(nil, depth)
	return v
}

// WithStrict makes every warning a blocking error.
func (v *Validator) WithStrict(strict bool) *Validator {
	v.strict = strict
	return v
}

// Lint runs every pass and returns all problems, warnings included.
func (v *Validator) Lint(tmpl *ast.Template) *rbErrors.ErrorList {
	problems := rbErrors.NewErrorList()
	if tmpl == nil {
		problems.AddError(rbErrors.ErrorTypeStructural, "Template is nil", ast.Location{})
		return problems
	}

	checkReferences(tmpl, problems)
	v.checkConditions(tmpl, problems)
	checkBodies(tmpl, problems)

	if v.strict {
		for _, p := range problems.Errors {
			p.Severity = rbErrors.SeverityError
		}
	}
	return problems
}

// Validate runs every pass and returns an *errors.ErrorList only when a
// blocking problem was found.
func (v *Validator) Validate(tmpl *ast.Template) error {
	return v.Lint(tmpl).ToError()
}
