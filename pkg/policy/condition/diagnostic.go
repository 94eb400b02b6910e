package condition

import (
	"fmt"
	"strings"

	"ledgerline/policyforge/pkg/rulebook/ast"
)

// DiagnosticCode classifies a structural problem in a condition tree.
type DiagnosticCode string

const (
	CodeUnknownOperator DiagnosticCode = "unknown_operator"
	CodeMissingField    DiagnosticCode = "missing_field"
	CodeMissingValue    DiagnosticCode = "missing_value"
	CodeUnknownKind     DiagnosticCode = "unknown_kind"
	CodeEmptyBranch     DiagnosticCode = "empty_branch"
	CodeLeafChildren    DiagnosticCode = "leaf_children"
	CodeNilNode         DiagnosticCode = "nil_node"
	CodeTooDeep         DiagnosticCode = "too_deep"
)

// Diagnostic describes one malformed node.
type Diagnostic struct {
	Code     DiagnosticCode `json:"code"`
	Message  string         `json:"message"`
	Field    string         `json:"field,omitempty"`
	Location ast.Location   `json:"-"`
}

// String returns the message prefixed with the source location when known.
func (d Diagnostic) String() string {
	if d.Location.Line > 0 {
		return fmt.Sprintf("%s: %s", d.Location, d.Message)
	}
	return d.Message
}

// Summarize joins diagnostic messages for a single log or audit line.
func Summarize(diags []Diagnostic) string {
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = d.String()
	}
	return strings.Join(parts, "; ")
}
