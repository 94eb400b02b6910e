package validator

import (
	"fmt"
	"strings"

	"ledgerline/policyforge/pkg/policy/condition"
	"ledgerline/policyforge/pkg/rulebook/ast"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
)

func (v *Validator) checkConditions(tmpl *ast.Template, problems *rbErrors.ErrorList) {
	operators := make([]string, len(ast.Operators))
	for i, op := range ast.Operators {
		operators[i] = string(op)
	}

	for _, rule := range tmpl.Rules {
		for _, d := range v.evaluator.Validate(rule.Condition) {
			loc := d.Location
			if !loc.IsValid() {
				loc = rule.Location
			}

			var suggestion string
			switch d.Code {
			case condition.CodeUnknownOperator:
				if op, ok := quoted(d.Message); ok {
					suggestion = rbErrors.SuggestClosest(op, operators)
				}
			case condition.CodeUnknownKind:
				suggestion = "Use all or any; negate with not_equals"
			}

			problems.AddWarning(
				rbErrors.ErrorTypeSemantic,
				fmt.Sprintf("Rule %q has a malformed condition and will never fire: %s", rule.ID, d.Message),
				loc,
				suggestion,
			)
		}
	}
}

// quoted returns the first double-quoted substring of s.
func quoted(s string) (string, bool) {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return "", false
	}
	return s[start+1 : start+1+end], true
}
