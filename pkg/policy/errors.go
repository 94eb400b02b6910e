package policy

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError describes a rejected status change.
type TransitionError struct {
	PolicyID string
	From     Status
	To       Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("policy %s: cannot move from %s to %s", e.PolicyID, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
