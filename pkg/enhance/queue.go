package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/storage"
)

// Queue records enhancement jobs in the store.
type Queue struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	wake   chan struct{}
}

// NewQueue creates a Queue.
func NewQueue(store storage.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		store:  store,
		logger: logger.With("component", "enhance.queue"),
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// Wake returns a channel that receives after each Enqueue. Pass it to
// Worker.WithWake so new jobs are picked up without waiting for a poll.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Enqueue records a pending job against p's current revision, marks the
// policy's enhancement as pending and returns immediately. Older pending jobs
// for the same policy are superseded.
func (q *Queue) Enqueue(ctx context.Context, p *policy.Policy) (*policy.EnhancementJob, error) {
	now := q.now().UTC()

	pending, err := q.store.ListJobs(ctx, storage.JobFilter{PolicyID: p.ID, Status: policy.JobPending})
	if err != nil {
		return nil, err
	}
	for _, old := range pending {
		old.Status = policy.JobSuperseded
		old.UpdatedAt = now
		if err := q.store.UpdateJob(ctx, old); err != nil {
			return nil, err
		}
	}

	job := &policy.EnhancementJob{
		ID:        uuid.New().String(),
		PolicyID:  p.ID,
		Revision:  p.Revision,
		Status:    policy.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.store.EnqueueJob(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue enhancement for policy %s: %w", p.ID, err)
	}

	state := &policy.EnhancementState{
		Enabled:     true,
		Status:      policy.EnhancementPending,
		JobID:       job.ID,
		RequestedAt: now,
	}
	if err := q.store.SetEnhancementState(ctx, p.ID, state); err != nil {
		return nil, err
	}
	p.Enhancement = state

	select {
	case q.wake <- struct{}{}:
	default:
	}

	q.logger.InfoContext(ctx, "enhancement queued",
		"policy_id", p.ID,
		"job_id", job.ID,
		"revision", job.Revision,
		"superseded", len(pending),
	)
	return job, nil
}
