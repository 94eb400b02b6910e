package manager

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
)

var (
	// ErrUnknownTemplate is returned when a template code is not in the
	// loaded catalog.
	ErrUnknownTemplate = errors.New("unknown template")

	// ErrInvalidRequest is returned for a policy request missing required
	// fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidConfig is returned when the manager configuration is invalid.
	ErrInvalidConfig = errors.New("invalid manager configuration")

	// ErrEnhancementDisabled is returned by Enhance when no queue is attached.
	ErrEnhancementDisabled = errors.New("enhancement is not enabled")

	// ErrUpdateContention is returned when a policy kept changing underneath
	// an update until the retries ran out.
	ErrUpdateContention = errors.New("policy update contention")
)

// CatalogError describes a rejected catalog load. The previously loaded
// templates stay active.
type CatalogError struct {
	// Problems maps template source (file or code) to its blocking problems.
	Problems map[string]*rbErrors.ErrorList

	// Duplicates lists template codes defined more than once.
	Duplicates []string

	// Cause is set when the source itself failed.
	Cause error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("catalog load failed: %v", e.Cause)
	}
	var parts []string
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate template codes: %s", strings.Join(e.Duplicates, ", ")))
	}
	names := make([]string, 0, len(e.Problems))
	for name := range e.Problems {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		list := e.Problems[name]
		parts = append(parts, fmt.Sprintf("%s: %d problem(s)", name, list.Count()-len(list.Warnings())))
	}
	return "catalog rejected: " + strings.Join(parts, "; ")
}

// Unwrap returns the source error, if any.
func (e *CatalogError) Unwrap() error {
	return e.Cause
}
