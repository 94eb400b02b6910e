package condition

import (
	"strings"

	"github.com/shopspring/decimal"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/rulebook/ast"
)

// evaluateOperator compares a present answer against a literal.
func evaluateOperator(op ast.Operator, actual, expected answers.Value) bool {
	switch op {
	case ast.OperatorExists:
		return !actual.IsBlank()

	case ast.OperatorEquals:
		return actual.Equal(expected)

	case ast.OperatorNotEquals:
		return !actual.Equal(expected)

	case ast.OperatorGreaterThan:
		a, b, ok := toNumeric(actual, expected)
		return ok && a.GreaterThan(b)

	case ast.OperatorLessThan:
		a, b, ok := toNumeric(actual, expected)
		return ok && a.LessThan(b)

	case ast.OperatorIncludes:
		return evaluateIncludes(actual, expected)

	default:
		return false
	}
}

// evaluateIncludes checks array membership, or token membership for a
// comma-delimited string. Tokens are trimmed before comparison.
func evaluateIncludes(actual, expected answers.Value) bool {
	if elems, ok := actual.AsArray(); ok {
		for _, elem := range elems {
			if elem.Equal(expected) {
				return true
			}
		}
		return false
	}

	if s, ok := actual.AsString(); ok {
		for _, token := range strings.Split(s, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if answers.String(token).Equal(expected) {
				return true
			}
		}
	}
	return false
}

// toNumeric converts both operands to decimals. Either side failing to look
// numeric makes the comparison unsatisfiable.
func toNumeric(actual, expected answers.Value) (decimal.Decimal, decimal.Decimal, bool) {
	a, ok := actual.AsNumber()
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	b, ok := expected.AsNumber()
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return a, b, true
}
