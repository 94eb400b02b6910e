package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/storage"
)

// Metrics receives worker outcomes.
type Metrics interface {
	RecordEnhancementJob(status policy.JobStatus, d time.Duration)
	RecordEnhancementClause(ok bool)
}

// Worker consumes enhancement jobs.
type Worker struct {
	store     storage.Store
	generator Generator
	config    *Config
	logger    *slog.Logger
	metrics   Metrics
	wake      <-chan struct{}
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewWorker creates a Worker. A nil config uses DefaultConfig.
func NewWorker(store storage.Store, gen Generator, cfg *Config, logger *slog.Logger) *Worker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:     store,
		generator: gen,
		config:    cfg,
		logger:    logger.With("component", "enhance.worker"),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// WithWake makes Run check for jobs whenever ch receives.
func (w *Worker) WithWake(ch <-chan struct{}) *Worker {
	w.wake = ch
	return w
}

// WithMetrics attaches a metrics sink.
func (w *Worker) WithMetrics(m Metrics) *Worker {
	w.metrics = m
	return w
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("enhancement worker started",
		"poll_interval", w.config.PollInterval,
		"batch_size", w.config.BatchSize,
		"concurrency", w.config.Concurrency,
	)
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("enhancement worker stopped")
				return nil
			}
			w.logger.Error("enhancement drain failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("enhancement worker stopped")
			return nil
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// Drain claims and processes pending jobs until none are left. It returns
// the number of jobs processed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		job, err := w.store.ClaimJob(ctx, w.now().UTC())
		if errors.Is(err, storage.ErrNotFound) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := w.Process(ctx, job); err != nil {
			return n, err
		}
		n++
	}
}

// Process runs one claimed job to a final status. It returns an error only
// when the job could not be settled; generator failures are recorded on the
// policy instead.
func (w *Worker) Process(ctx context.Context, job *policy.EnhancementJob) error {
	start := w.now()
	ctx, span := otel.Tracer("policyforge/enhance").Start(ctx, "enhance.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("policy.id", job.PolicyID),
		attribute.String("enhance.job_id", job.ID),
		attribute.Int64("policy.revision", job.Revision),
	)

	logger := w.logger.With("job_id", job.ID, "policy_id", job.PolicyID)

	p, err := w.store.GetPolicy(ctx, job.PolicyID)
	if errors.Is(err, storage.ErrNotFound) {
		return w.settle(ctx, job, policy.JobFailed, "policy not found", start)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if p.Revision != job.Revision {
		logger.Info("policy changed before enhancement started", "job_revision", job.Revision, "revision", p.Revision)
		return w.supersede(ctx, job, p, start)
	}

	bodies, enhanced, failures := w.rewrite(ctx, p)
	if err := ctx.Err(); err != nil {
		// Leave the job running; the scheduler requeues stalled jobs.
		return err
	}

	now := w.now().UTC()
	state := &policy.EnhancementState{
		Enabled:     true,
		Status:      policy.EnhancementComplete,
		JobID:       job.ID,
		Enhanced:    enhanced,
		Failures:    failures,
		RequestedAt: job.CreatedAt,
		CompletedAt: &now,
	}
	if p.Enhancement != nil {
		state.RequestedAt = p.Enhancement.RequestedAt
	}
	jobStatus := policy.JobComplete
	if len(p.Clauses) > 0 && len(bodies) == 0 {
		state.Status = policy.EnhancementFailed
		jobStatus = policy.JobFailed
	}

	err = w.store.ApplyEnhancement(ctx, p.ID, job.Revision, bodies, state)
	if errors.Is(err, storage.ErrRevisionConflict) {
		logger.Info("policy changed during enhancement, discarding result")
		current, err := w.store.GetPolicy(ctx, p.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return w.supersede(ctx, job, current, start)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(
		attribute.Int("enhance.enhanced", len(enhanced)),
		attribute.Int("enhance.failures", len(failures)),
	)
	logger.Info("enhancement applied",
		"status", state.Status,
		"enhanced", len(enhanced),
		"failures", len(failures),
	)

	var msg string
	if jobStatus == policy.JobFailed {
		msg = fmt.Sprintf("all %d clauses failed", len(p.Clauses))
	}
	return w.settle(ctx, job, jobStatus, msg, start)
}

// supersede settles a job whose policy moved on. When the policy still
// points at this job its enhancement state is closed as failed, so it does
// not stay pending for a job that will never run.
func (w *Worker) supersede(ctx context.Context, job *policy.EnhancementJob, p *policy.Policy, start time.Time) error {
	if p != nil && p.Enhancement != nil && p.Enhancement.JobID == job.ID &&
		p.Enhancement.Status == policy.EnhancementPending {
		now := w.now().UTC()
		state := p.Enhancement.Clone()
		state.Status = policy.EnhancementFailed
		state.Failures = []string{fmt.Sprintf("superseded by revision %d", p.Revision)}
		state.CompletedAt = &now
		if err := w.store.SetEnhancementState(ctx, p.ID, state); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return w.settle(ctx, job, policy.JobSuperseded, "", start)
}

func (w *Worker) settle(ctx context.Context, job *policy.EnhancementJob, status policy.JobStatus, msg string, start time.Time) error {
	job.Status = status
	job.Error = msg
	job.UpdatedAt = w.now().UTC()
	if err := w.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.RecordEnhancementJob(status, w.now().Sub(start))
	}
	return nil
}

// rewrite generates new bodies batch by batch. Only clauses whose rewrite
// succeeded appear in bodies.
func (w *Worker) rewrite(ctx context.Context, p *policy.Policy) (bodies map[string]string, enhanced, failures []string) {
	bodies = make(map[string]string)
	enhanced = []string{}
	failures = []string{}

	results := make([]string, len(p.Clauses))
	errs := make([]error, len(p.Clauses))

	for start := 0; start < len(p.Clauses); start += w.config.BatchSize {
		if start > 0 {
			if err := w.sleep(ctx, w.config.BatchDelay); err != nil {
				return bodies, enhanced, failures
			}
		}
		end := start + w.config.BatchSize
		if end > len(p.Clauses) {
			end = len(p.Clauses)
		}

		var g errgroup.Group
		g.SetLimit(w.config.Concurrency)
		for i := start; i < end; i++ {
			c := p.Clauses[i]
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
				defer cancel()
				text, err := w.generator.Generate(cctx, Request{
					PolicyID: p.ID,
					Code:     c.Code,
					Title:    c.Title,
					Body:     c.Body,
				})
				if err == nil {
					if text = Sanitize(text); text == "" {
						err = errors.New("empty rewrite")
					}
				}
				results[i], errs[i] = text, err
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, c := range p.Clauses {
		ok := errs[i] == nil
		if w.metrics != nil {
			w.metrics.RecordEnhancementClause(ok)
		}
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: %v", c.Code, errs[i]))
			w.logger.Warn("clause enhancement failed", "policy_id", p.ID, "clause", c.Code, "error", errs[i])
			continue
		}
		bodies[c.Code] = results[i]
		enhanced = append(enhanced, c.Code)
	}
	return bodies, enhanced, failures
}
