package versioning

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPolicy is returned when publishing a policy with no clauses.
	ErrEmptyPolicy = errors.New("policy has no clauses")

	// ErrPolicyArchived is returned when publishing or restoring an archived
	// policy.
	ErrPolicyArchived = errors.New("policy is archived")

	// ErrPublishContention is returned when every publish attempt lost the
	// version number race.
	ErrPublishContention = errors.New("publish contention: retries exhausted")

	// ErrInvalidConfig is returned when the versioning configuration is invalid.
	ErrInvalidConfig = errors.New("invalid versioning configuration")
)

// ValidationError is a recoverable rejection of a publish or restore. The
// caller can fix the policy and try again.
type ValidationError struct {
	PolicyID string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("policy %s: %v", e.PolicyID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
