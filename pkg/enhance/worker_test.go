package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ledgerline/policyforge/pkg/assembly"
	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/policy/engine"
	"ledgerline/policyforge/pkg/storage"
)

func seedPolicy(t *testing.T, store storage.Store, codes ...string) *policy.Policy {
	t.Helper()
	p := policy.New("org-1", "aml", "AML", time.Now())
	for i, code := range codes {
		p.Clauses = append(p.Clauses, assembly.RenderedClause{
			Code: code, Title: strings.ToUpper(code), DisplayOrder: (i + 1) * 10, Body: "original " + code,
		})
	}
	p.Decision = &engine.DecisionSet{
		Included:   codes,
		RulesFired: []engine.Firing{{RuleID: "r1", Outcome: engine.OutcomeFired}},
	}
	if err := store.CreatePolicy(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.Concurrency = 2
	cfg.BatchDelay = 0
	cfg.Timeout = time.Second
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

type recordingMetrics struct {
	mu      sync.Mutex
	jobs    []policy.JobStatus
	clauses map[bool]int
}

func (m *recordingMetrics) RecordEnhancementJob(status policy.JobStatus, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, status)
}

func (m *recordingMetrics) RecordEnhancementClause(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clauses == nil {
		m.clauses = map[bool]int{}
	}
	m.clauses[ok]++
}

func upper(ctx context.Context, req Request) (string, error) {
	return "<p>" + strings.ToUpper(req.Body) + "</p>", nil
}

func TestEnqueue_ReturnsPendingImmediately(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "purpose")
	q := NewQueue(store, nil)

	job, err := q.Enqueue(ctx, p)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if job.Status != policy.JobPending || job.Revision != p.Revision {
		t.Errorf("job = %+v", job)
	}
	if p.Enhancement == nil || p.Enhancement.Status != policy.EnhancementPending {
		t.Errorf("caller's policy not marked pending: %+v", p.Enhancement)
	}

	stored, _ := store.GetPolicy(ctx, p.ID)
	if stored.Enhancement == nil || stored.Enhancement.JobID != job.ID || stored.Revision != p.Revision {
		t.Errorf("stored enhancement = %+v rev %d", stored.Enhancement, stored.Revision)
	}

	select {
	case <-q.Wake():
	default:
		t.Error("Enqueue() did not signal the wake channel")
	}
}

func TestEnqueue_SupersedesOlderPendingJobs(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "purpose")
	q := NewQueue(store, nil)

	first, _ := q.Enqueue(ctx, p)
	second, err := q.Enqueue(ctx, p)
	if err != nil {
		t.Fatal(err)
	}

	old, _ := store.GetJob(ctx, first.ID)
	if old.Status != policy.JobSuperseded {
		t.Errorf("first job status = %s, want superseded", old.Status)
	}
	cur, _ := store.GetJob(ctx, second.ID)
	if cur.Status != policy.JobPending {
		t.Errorf("second job status = %s, want pending", cur.Status)
	}
}

func TestWorker_AppliesEnhancement(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "purpose", "edd", "monitoring")
	metrics := &recordingMetrics{}
	q := NewQueue(store, nil)
	job, _ := q.Enqueue(ctx, p)

	w := NewWorker(store, GeneratorFunc(upper), testConfig(), nil).WithMetrics(metrics)
	n, err := w.Drain(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Drain() = %d, %v", n, err)
	}

	got, _ := store.GetPolicy(ctx, p.ID)
	for _, c := range got.Clauses {
		if want := "ORIGINAL " + strings.ToUpper(c.Code); c.Body != want {
			t.Errorf("%s body = %q, want %q", c.Code, c.Body, want)
		}
	}
	if got.Enhancement.Status != policy.EnhancementComplete || len(got.Enhancement.Enhanced) != 3 || got.Enhancement.CompletedAt == nil {
		t.Errorf("Enhancement = %+v", got.Enhancement)
	}
	if strings.Join(got.ClauseCodes(), ",") != "purpose,edd,monitoring" {
		t.Errorf("clause set changed: %v", got.ClauseCodes())
	}
	if len(got.Decision.RulesFired) != 1 || got.Decision.RulesFired[0].RuleID != "r1" {
		t.Errorf("rules fired log changed: %+v", got.Decision.RulesFired)
	}

	done, _ := store.GetJob(ctx, job.ID)
	if done.Status != policy.JobComplete || done.Attempts != 1 {
		t.Errorf("job = %+v", done)
	}
	if len(metrics.jobs) != 1 || metrics.jobs[0] != policy.JobComplete || metrics.clauses[true] != 3 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestWorker_PartialAndTotalFailure(t *testing.T) {
	tests := []struct {
		name       string
		fail       func(code string) bool
		wantStatus policy.EnhancementStatus
		wantJob    policy.JobStatus
		wantFailed int
	}{
		{"partial", func(code string) bool { return code == "edd" }, policy.EnhancementComplete, policy.JobComplete, 1},
		{"all", func(string) bool { return true }, policy.EnhancementFailed, policy.JobFailed, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			p := seedPolicy(t, store, "purpose", "edd")
			job, _ := NewQueue(store, nil).Enqueue(ctx, p)

			gen := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
				if tt.fail(req.Code) {
					return "", errors.New("service unavailable")
				}
				return "rewritten", nil
			})
			if _, err := NewWorker(store, gen, testConfig(), nil).Drain(ctx); err != nil {
				t.Fatal(err)
			}

			got, _ := store.GetPolicy(ctx, p.ID)
			if got.Enhancement.Status != tt.wantStatus || len(got.Enhancement.Failures) != tt.wantFailed {
				t.Errorf("Enhancement = %+v", got.Enhancement)
			}
			for _, c := range got.Clauses {
				if tt.fail(c.Code) && c.Body != "original "+c.Code {
					t.Errorf("failed clause %s body replaced: %q", c.Code, c.Body)
				}
			}
			if j, _ := store.GetJob(ctx, job.ID); j.Status != tt.wantJob {
				t.Errorf("job status = %s, want %s", j.Status, tt.wantJob)
			}
		})
	}
}

func TestWorker_SupersededWhenPolicyMovesFirst(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "purpose")
	job, _ := NewQueue(store, nil).Enqueue(ctx, p)

	edited, _ := store.GetPolicy(ctx, p.ID)
	edited.Clauses[0].Body = "user edit"
	if err := store.UpdatePolicy(ctx, edited, edited.Revision); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	gen := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		calls.Add(1)
		return "stale", nil
	})
	if _, err := NewWorker(store, gen, testConfig(), nil).Drain(ctx); err != nil {
		t.Fatal(err)
	}

	if calls.Load() != 0 {
		t.Errorf("generator called %d times for a stale job", calls.Load())
	}
	got, _ := store.GetPolicy(ctx, p.ID)
	if got.Clauses[0].Body != "user edit" {
		t.Errorf("body = %q, want user edit", got.Clauses[0].Body)
	}
	if j, _ := store.GetJob(ctx, job.ID); j.Status != policy.JobSuperseded {
		t.Errorf("job status = %s, want superseded", j.Status)
	}
	assertSupersededState(t, got, job.ID)
}

// assertSupersededState checks that a policy whose job was superseded is not
// left pending.
func assertSupersededState(t *testing.T, p *policy.Policy, jobID string) {
	t.Helper()
	if p.Enhancement == nil {
		t.Fatal("Enhancement = nil")
	}
	if p.Enhancement.Status != policy.EnhancementFailed {
		t.Errorf("enhancement status = %s, want failed", p.Enhancement.Status)
	}
	if p.Enhancement.JobID != jobID {
		t.Errorf("enhancement job = %s, want %s", p.Enhancement.JobID, jobID)
	}
	want := fmt.Sprintf("superseded by revision %d", p.Revision)
	if len(p.Enhancement.Failures) != 1 || p.Enhancement.Failures[0] != want {
		t.Errorf("Failures = %v, want [%s]", p.Enhancement.Failures, want)
	}
	if p.Enhancement.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestWorker_SupersededKeepsNewerRequest(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "purpose")
	queue := NewQueue(store, nil)
	stale, _ := queue.Enqueue(ctx, p)

	edited, _ := store.GetPolicy(ctx, p.ID)
	edited.Clauses[0].Body = "user edit"
	if err := store.UpdatePolicy(ctx, edited, edited.Revision); err != nil {
		t.Fatal(err)
	}
	edited, _ = store.GetPolicy(ctx, p.ID)
	fresh, err := queue.Enqueue(ctx, edited)
	if err != nil {
		t.Fatal(err)
	}

	w := NewWorker(store, GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		return "rewritten", nil
	}), testConfig(), nil)
	if err := w.Process(ctx, stale); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetPolicy(ctx, p.ID)
	if got.Enhancement.JobID != fresh.ID || got.Enhancement.Status != policy.EnhancementPending {
		t.Errorf("enhancement = %s/%s, want %s/pending", got.Enhancement.JobID, got.Enhancement.Status, fresh.ID)
	}
}

func TestWorker_SupersededWhenPolicyMovesDuringGeneration(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "purpose")
	job, _ := NewQueue(store, nil).Enqueue(ctx, p)

	var once sync.Once
	gen := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		once.Do(func() {
			edited, _ := store.GetPolicy(ctx, p.ID)
			edited.Clauses[0].Body = "concurrent edit"
			if err := store.UpdatePolicy(ctx, edited, edited.Revision); err != nil {
				t.Errorf("UpdatePolicy() error = %v", err)
			}
		})
		return "stale rewrite", nil
	})
	if _, err := NewWorker(store, gen, testConfig(), nil).Drain(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetPolicy(ctx, p.ID)
	if got.Clauses[0].Body != "concurrent edit" {
		t.Errorf("stale enhancement clobbered edit: %q", got.Clauses[0].Body)
	}
	if j, _ := store.GetJob(ctx, job.ID); j.Status != policy.JobSuperseded {
		t.Errorf("job status = %s, want superseded", j.Status)
	}
	assertSupersededState(t, got, job.ID)
}

func TestWorker_BatchingAndConcurrencyCap(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "a", "b", "c", "d", "e")
	NewQueue(store, nil).Enqueue(ctx, p)

	var inFlight, peak atomic.Int32
	gen := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	})

	cfg := testConfig()
	cfg.BatchSize = 3
	cfg.Concurrency = 2
	cfg.BatchDelay = 50 * time.Millisecond

	var delays []time.Duration
	w := NewWorker(store, gen, cfg, nil)
	w.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	if _, err := w.Drain(ctx); err != nil {
		t.Fatal(err)
	}

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
	if len(delays) != 1 || delays[0] != 50*time.Millisecond {
		t.Errorf("batch delays = %v, want one 50ms pause", delays)
	}
}

func TestWorker_TimeoutRecordedAsFailure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "slow")
	NewQueue(store, nil).Enqueue(ctx, p)

	gen := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	if _, err := NewWorker(store, gen, cfg, nil).Drain(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetPolicy(ctx, p.ID)
	if got.Enhancement.Status != policy.EnhancementFailed || !strings.Contains(got.Enhancement.Failures[0], "deadline") {
		t.Errorf("Enhancement = %+v", got.Enhancement)
	}
}

func TestWorker_RunWakesOnEnqueue(t *testing.T) {
	store := storage.NewMemoryStore()
	p := seedPolicy(t, store, "purpose")
	q := NewQueue(store, nil)

	cfg := testConfig()
	cfg.PollInterval = time.Hour
	w := NewWorker(store, GeneratorFunc(upper), cfg, nil).WithWake(q.Wake())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	job, err := q.Enqueue(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		j, _ := store.GetJob(context.Background(), job.ID)
		if j.Status == policy.JobComplete {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %s", j.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"negative delay", func(c *Config) { c.BatchDelay = -1 }, true},
		{"no timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"enabled without endpoint", func(c *Config) { c.Enabled = true }, true},
		{"enabled", func(c *Config) { c.Enabled = true; c.Generator.Endpoint = "http://localhost" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}
