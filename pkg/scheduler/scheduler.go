package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ledgerline/policyforge/pkg/storage"
)

// Scheduler runs the Maintainer jobs on cron schedules.
type Scheduler struct {
	maintainer *Maintainer
	config     *Config
	cron       *cron.Cron
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	entries map[string]cron.EntryID
}

// New creates a scheduler around a new Maintainer.
func New(store storage.Store, cfg *Config, logger *slog.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewWithMaintainer(NewMaintainer(store, cfg, logger), logger)
}

// NewWithMaintainer creates a scheduler for an existing Maintainer.
func NewWithMaintainer(m *Maintainer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		maintainer: m,
		config:     m.config,
		cron:       cron.New(),
		logger:     logger.With("component", "scheduler"),
		entries:    make(map[string]cron.EntryID),
	}
}

// Maintainer returns the job runner.
func (s *Scheduler) Maintainer() *Maintainer {
	return s.maintainer
}

// Start registers the configured jobs and starts the cron loop. Jobs with an
// empty schedule are skipped. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if err := s.config.Validate(); err != nil {
		return err
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"expiry", s.config.ExpirySchedule, s.runExpiry},
		{"requeue", s.config.RequeueSchedule, s.runRequeue},
	}
	for _, job := range jobs {
		if job.spec == "" {
			s.logger.Info("job schedule not configured, skipping", "job", job.name)
			continue
		}
		id, err := s.cron.AddFunc(job.spec, func() { job.run(ctx) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		s.entries[job.name] = id
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started",
		"expiry_schedule", s.config.ExpirySchedule,
		"requeue_schedule", s.config.RequeueSchedule,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runExpiry(ctx context.Context) {
	start := time.Now()
	n, err := s.maintainer.ExpireDue(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return
	}
	s.logger.Debug("expiry sweep completed", "expired", n, "duration_ms", time.Since(start).Milliseconds())
}

func (s *Scheduler) runRequeue(ctx context.Context) {
	requeued, failed, err := s.maintainer.RequeueStale(ctx)
	if err != nil {
		s.logger.Error("stalled job sweep failed", "error", err)
		return
	}
	if requeued+failed > 0 {
		s.logger.Info("stalled job sweep completed", "requeued", requeued, "failed", failed)
	}
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the cron loop is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next run time of the named job ("expiry" or
// "requeue"), or nil when it is not scheduled.
func (s *Scheduler) NextRun(job string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[job]
	if !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}
