package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerline/policyforge/pkg/policy"
)

var (
	// ErrNotFound is returned when a policy, version or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRevisionConflict is returned when a compare-and-swap write finds the
	// policy at a different revision.
	ErrRevisionConflict = errors.New("policy revision conflict")

	// ErrVersionConflict is returned when another publish claimed the version
	// number first.
	ErrVersionConflict = errors.New("version number conflict")

	// ErrAlreadyExists is returned when creating a policy whose ID is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// Store is the persistence boundary. Implementations must be safe for
// concurrent use. Tenant scoping is the caller's job: nothing here filters by
// organization unless a filter asks for it.
type Store interface {
	// CreatePolicy stores a new policy at revision 1.
	CreatePolicy(ctx context.Context, p *policy.Policy) error

	// GetPolicy returns a copy of the stored policy.
	GetPolicy(ctx context.Context, id string) (*policy.Policy, error)

	// ListPolicies returns policies matching filter, ordered by creation time.
	ListPolicies(ctx context.Context, filter PolicyFilter) ([]*policy.Policy, error)

	// UpdatePolicy replaces the stored policy if it is still at
	// expectedRevision, then sets p.Revision to the new revision.
	UpdatePolicy(ctx context.Context, p *policy.Policy, expectedRevision int64) error

	// SetEnhancementState replaces the policy's enhancement metadata without
	// bumping its revision.
	SetEnhancementState(ctx context.Context, policyID string, state *policy.EnhancementState) error

	// ApplyEnhancement replaces the bodies of the named clauses and the
	// enhancement state if the policy is still at expectedRevision. Codes not
	// in the policy are ignored. The revision is bumped.
	ApplyEnhancement(ctx context.Context, policyID string, expectedRevision int64, bodies map[string]string, state *policy.EnhancementState) error

	// InsertVersion atomically checks that v.Number is one past the highest
	// stored number, stores v and points the policy at it.
	InsertVersion(ctx context.Context, v *policy.Version) error

	// GetVersion returns one version.
	GetVersion(ctx context.Context, policyID string, number int) (*policy.Version, error)

	// ListVersions returns every version of a policy in ascending order.
	ListVersions(ctx context.Context, policyID string) ([]*policy.Version, error)

	// LatestVersionNumber returns the highest version number, zero if none.
	LatestVersionNumber(ctx context.Context, policyID string) (int, error)

	// EnqueueJob stores a pending enhancement job.
	EnqueueJob(ctx context.Context, job *policy.EnhancementJob) error

	// ClaimJob moves the oldest pending job to running and returns it.
	// It returns ErrNotFound when no job is pending.
	ClaimJob(ctx context.Context, now time.Time) (*policy.EnhancementJob, error)

	// UpdateJob stores the job's status, attempts and error.
	UpdateJob(ctx context.Context, job *policy.EnhancementJob) error

	// GetJob returns one job.
	GetJob(ctx context.Context, id string) (*policy.EnhancementJob, error)

	// ListJobs returns jobs matching filter, oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*policy.EnhancementJob, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// PolicyFilter selects policies. Zero fields match everything.
type PolicyFilter struct {
	OrganizationID string
	TemplateCode   string
	Status         policy.Status

	// ReviewDueBefore selects policies with a review date at or before it.
	ReviewDueBefore *time.Time

	Limit int
}

// JobFilter selects enhancement jobs. Zero fields match everything.
type JobFilter struct {
	PolicyID string
	Status   policy.JobStatus

	// UpdatedBefore selects jobs last touched strictly before it.
	UpdatedBefore *time.Time
}

// StorageError wraps a backend failure with the operation that failed.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
