package policy

import "time"

// EnhancementStatus is the state of the prose rewrite overlay on a policy.
type EnhancementStatus string

const (
	EnhancementPending  EnhancementStatus = "pending"
	EnhancementComplete EnhancementStatus = "complete"
	EnhancementFailed   EnhancementStatus = "failed"
)

// EnhancementState is attached to a policy while and after its clause bodies
// are rewritten.
type EnhancementState struct {
	Enabled bool              `json:"enabled"`
	Status  EnhancementStatus `json:"status"`
	JobID   string            `json:"job_id,omitempty"`

	// Enhanced lists the clause codes whose bodies were replaced.
	Enhanced []string `json:"enhanced,omitempty"`

	// Failures holds one "code: reason" entry per clause that could not be
	// rewritten.
	Failures []string `json:"failures,omitempty"`

	RequestedAt time.Time  `json:"requested_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy.
func (s *EnhancementState) Clone() *EnhancementState {
	cp := *s
	cp.Enhanced = append([]string(nil), s.Enhanced...)
	cp.Failures = append([]string(nil), s.Failures...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// JobStatus is the state of an enhancement job in the queue.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobRunning    JobStatus = "running"
	JobComplete   JobStatus = "complete"
	JobFailed     JobStatus = "failed"
	JobSuperseded JobStatus = "superseded"
)

// IsFinal reports whether the job will not run again.
func (s JobStatus) IsFinal() bool {
	return s == JobComplete || s == JobFailed || s == JobSuperseded
}

// EnhancementJob is a queued request to rewrite a policy's clause bodies. It
// records the policy revision it was created against; results are applied
// only if the policy is still at that revision.
type EnhancementJob struct {
	ID        string    `json:"id"`
	PolicyID  string    `json:"policy_id"`
	Revision  int64     `json:"revision"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
