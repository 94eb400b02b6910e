// Package condition evaluates rule conditions against a firm's answers.
//
// Evaluation is total and fail-closed. A tree is checked structurally before
// it is evaluated; if any node is malformed (unknown operator, missing field
// name, empty branch, excessive depth) the whole condition evaluates to false
// and the problems are returned as diagnostics instead of an error. A field
// that is absent from the answers makes its leaf false, whatever the operator.
//
// Operator semantics:
//
//	exists        present, not null and not the empty string
//	equals        strict comparison; numeric-looking operands compare as numbers
//	not_equals    negation of equals (still false when the field is missing)
//	greater_than  numeric only; non-numeric operands make the leaf false
//	less_than     numeric only
//	includes      array element match, or a token of a comma-delimited string
//
// Branches short-circuit: all stops at the first false child, any at the
// first true child.
package condition
