package errors

import (
	"fmt"
	"strings"

	"ledgerline/policyforge/pkg/rulebook/ast"
)

// ErrorType categorizes a catalog error.
type ErrorType string

const (
	ErrorTypeSyntax     ErrorType = "syntax"     // YAML syntax error
	ErrorTypeStructural ErrorType = "structural" // Missing or invalid fields
	ErrorTypeSemantic   ErrorType = "semantic"   // Dangling references, duplicates
	ErrorTypeTemplate   ErrorType = "template"   // Clause body template problems
	ErrorTypeIO         ErrorType = "io"         // File I/O error
)

// Severity separates blocking errors from lint warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Error is a catalog problem with its location, context and suggested fix.
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Location   ast.Location
	Context    string // Surrounding lines of the source file
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	severity := e.Severity
	if severity == "" {
		severity = SeverityError
	}
	sb.WriteString(fmt.Sprintf("%s[%s] %s\n", severity, e.Type, e.Message))

	if e.Location.IsValid() {
		sb.WriteString(fmt.Sprintf("  --> %s\n", e.Location.String()))
	}

	if e.Context != "" {
		sb.WriteString("  |\n")
		sb.WriteString(e.Context)
		sb.WriteString("  |\n")
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  = suggestion: %s\n", e.Suggestion))
	}

	return sb.String()
}

// IsWarning reports whether the error is advisory.
func (e *Error) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// ErrorList accumulates errors found while parsing or linting.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates an empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*Error, 0),
	}
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	if err.Severity == "" {
		err.Severity = SeverityError
	}
	el.Errors = append(el.Errors, err)
}

// AddError creates and adds a blocking error.
func (el *ErrorList) AddError(errType ErrorType, message string, location ast.Location) {
	el.Add(&Error{
		Type:     errType,
		Severity: SeverityError,
		Message:  message,
		Location: location,
	})
}

// AddErrorWithSuggestion creates and adds a blocking error with a suggestion.
func (el *ErrorList) AddErrorWithSuggestion(errType ErrorType, message string, location ast.Location, suggestion string) {
	el.Add(&Error{
		Type:       errType,
		Severity:   SeverityError,
		Message:    message,
		Location:   location,
		Suggestion: suggestion,
	})
}

// AddWarning creates and adds an advisory entry.
func (el *ErrorList) AddWarning(errType ErrorType, message string, location ast.Location, suggestion string) {
	el.Add(&Error{
		Type:       errType,
		Severity:   SeverityWarning,
		Message:    message,
		Location:   location,
		Suggestion: suggestion,
	})
}

// Merge appends every entry of other.
func (el *ErrorList) Merge(other *ErrorList) {
	if other == nil {
		return
	}
	el.Errors = append(el.Errors, other.Errors...)
}

// HasErrors returns true if the list contains any blocking error.
func (el *ErrorList) HasErrors() bool {
	for _, err := range el.Errors {
		if !err.IsWarning() {
			return true
		}
	}
	return false
}

// Count returns the number of entries, warnings included.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Warnings returns the advisory entries.
func (el *ErrorList) Warnings() []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.IsWarning() {
			result = append(result, err)
		}
	}
	return result
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if el.Count() == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d problem(s):\n\n", el.Count()))

	for i, err := range el.Errors {
		sb.WriteString(fmt.Sprintf("Problem %d:\n", i+1))
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}

	return sb.String()
}

// ToError returns nil unless the list holds a blocking error.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}

// ByType returns all entries of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.Type == errType {
			result = append(result, err)
		}
	}
	return result
}

// HasErrorType returns true if the list contains an entry of the given type.
func (el *ErrorList) HasErrorType(errType ErrorType) bool {
	return len(el.ByType(errType)) > 0
}
