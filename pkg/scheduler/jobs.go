package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/storage"
)

// SystemActor is recorded as the actor of scheduler-driven transitions.
const SystemActor = "system:scheduler"

// Metrics receives sweep outcomes.
type Metrics interface {
	RecordPoliciesExpired(n int)
	RecordJobsRequeued(requeued, failed int)
}

// Maintainer runs the maintenance jobs against a store.
type Maintainer struct {
	store   storage.Store
	config  *Config
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time
}

// NewMaintainer creates a Maintainer. A nil config uses DefaultConfig.
func NewMaintainer(store storage.Store, cfg *Config, logger *slog.Logger) *Maintainer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintainer{
		store:  store,
		config: cfg,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
	}
}

// WithMetrics attaches a metrics sink.
func (m *Maintainer) WithMetrics(metrics Metrics) *Maintainer {
	m.metrics = metrics
	return m
}

// WithClock replaces the time source.
func (m *Maintainer) WithClock(now func() time.Time) *Maintainer {
	m.now = now
	return m
}

// ExpireDue moves every approved policy whose review date has passed to
// expired. A policy that changes while it is being expired is skipped; the
// next sweep sees it again if it is still due. It returns the number of
// policies expired.
func (m *Maintainer) ExpireDue(ctx context.Context) (int, error) {
	now := m.now().UTC()
	due, err := m.store.ListPolicies(ctx, storage.PolicyFilter{
		Status:          policy.StatusApproved,
		ReviewDueBefore: &now,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list policies due for review: %w", err)
	}

	expired := 0
	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if !p.ReviewDue(now) {
			continue
		}
		expected := p.Revision
		if err := p.Transition(policy.StatusExpired, SystemActor, now); err != nil {
			m.logger.Warn("cannot expire policy", "policy_id", p.ID, "error", err)
			continue
		}
		err := m.store.UpdatePolicy(ctx, p, expected)
		if errors.Is(err, storage.ErrRevisionConflict) {
			m.logger.Info("policy changed during expiry sweep, skipping", "policy_id", p.ID)
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("failed to expire policy %s: %w", p.ID, err)
		}
		expired++
		m.logger.Info("policy review date passed, expired",
			"policy_id", p.ID,
			"organization_id", p.OrganizationID,
			"next_review_at", p.NextReviewAt,
		)
	}

	if m.metrics != nil {
		m.metrics.RecordPoliciesExpired(expired)
	}
	return expired, nil
}

// RequeueStale returns running jobs that have not been touched for
// StaleAfter to pending, or fails them once they have been claimed
// MaxAttempts times. Failing a job also marks the policy's enhancement as
// failed when that job is the one the policy is waiting on.
func (m *Maintainer) RequeueStale(ctx context.Context) (requeued, failed int, err error) {
	now := m.now().UTC()
	cutoff := now.Add(-m.config.StaleAfter)
	stale, err := m.store.ListJobs(ctx, storage.JobFilter{
		Status:        policy.JobRunning,
		UpdatedBefore: &cutoff,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list stalled jobs: %w", err)
	}

	for _, job := range stale {
		if err := ctx.Err(); err != nil {
			return requeued, failed, err
		}
		job.UpdatedAt = now
		if job.Attempts < m.config.MaxAttempts {
			job.Status = policy.JobPending
			job.Error = fmt.Sprintf("requeued after stalling on attempt %d", job.Attempts)
		} else {
			job.Status = policy.JobFailed
			job.Error = fmt.Sprintf("stalled %d times", job.Attempts)
		}
		if err := m.store.UpdateJob(ctx, job); err != nil {
			return requeued, failed, fmt.Errorf("failed to update job %s: %w", job.ID, err)
		}

		if job.Status == policy.JobPending {
			requeued++
			m.logger.Info("requeued stalled enhancement job", "job_id", job.ID, "policy_id", job.PolicyID, "attempts", job.Attempts)
			continue
		}
		failed++
		m.logger.Warn("enhancement job failed after repeated stalls", "job_id", job.ID, "policy_id", job.PolicyID, "attempts", job.Attempts)
		m.failEnhancement(ctx, job, now)
	}

	if m.metrics != nil {
		m.metrics.RecordJobsRequeued(requeued, failed)
	}
	return requeued, failed, nil
}

func (m *Maintainer) failEnhancement(ctx context.Context, job *policy.EnhancementJob, now time.Time) {
	p, err := m.store.GetPolicy(ctx, job.PolicyID)
	if err != nil {
		return
	}
	if p.Enhancement == nil || p.Enhancement.JobID != job.ID {
		return
	}
	state := p.Enhancement.Clone()
	state.Status = policy.EnhancementFailed
	state.Failures = append(state.Failures, job.Error)
	state.CompletedAt = &now
	if err := m.store.SetEnhancementState(ctx, p.ID, state); err != nil {
		m.logger.Error("failed to record enhancement failure", "policy_id", p.ID, "error", err)
	}
}
