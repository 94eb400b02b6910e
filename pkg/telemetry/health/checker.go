package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Check and overall status values.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc performs a health check for a component. It returns nil if the
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Critical checks make the whole service unready when they fail.
	Critical bool `json:"critical"`

	// Message describes the failure.
	Message string `json:"message,omitempty"`

	// DurationMS is how long the check took.
	DurationMS float64 `json:"duration_ms"`
}

// HealthStatus is the aggregated result returned by the probes.
type HealthStatus struct {
	// Status is "ok" (liveness), "ready", "degraded" or "unhealthy".
	Status string `json:"status"`

	Checks map[string]CheckResult `json:"checks,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Ready reports whether the status should be served with 200.
func (s HealthStatus) Ready() bool {
	return s.Status != StatusUnhealthy
}

type registeredCheck struct {
	fn       CheckFunc
	critical bool
}

// Checker manages health checks for system components.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]registeredCheck

	checkTimeout time.Duration
	now          func() time.Time
}

// ErrCheckTimeout is reported when a check outlives the check timeout.
var ErrCheckTimeout = errors.New("health check timeout")

// New creates a health checker. A zero timeout means 5 seconds per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]registeredCheck),
		checkTimeout: checkTimeout,
		now:          time.Now,
	}
}

// RegisterCheck registers a critical check under name, replacing any
// previous one.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.register(name, check, true)
}

// RegisterOptional registers a check whose failure only degrades readiness.
func (c *Checker) RegisterOptional(name string, check CheckFunc) {
	c.register(name, check, false)
}

func (c *Checker) register(name string, check CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registeredCheck{fn: check, critical: critical}
}

// UnregisterCheck removes a health check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// CheckLiveness reports that the process is running. It runs no checks.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return HealthStatus{Status: StatusOK, Timestamp: c.now().UTC()}
}

// CheckReadiness runs every registered check concurrently. A failed
// critical check makes the result unhealthy; a failed optional check makes
// it degraded.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]registeredCheck, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.runCheck(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status == StatusOK {
			continue
		}
		if result.Critical {
			status = StatusUnhealthy
			break
		}
		status = StatusDegraded
	}

	return HealthStatus{
		Status:    status,
		Checks:    results,
		Timestamp: c.now().UTC(),
	}
}

func (c *Checker) runCheck(ctx context.Context, check registeredCheck) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, 1)
	go func() {
		errChan <- check.fn(checkCtx)
	}()

	result := CheckResult{Status: StatusOK, Critical: check.critical}
	select {
	case err := <-errChan:
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
		}
	case <-checkCtx.Done():
		result.Status = StatusUnhealthy
		result.Message = ErrCheckTimeout.Error()
	}
	result.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	return result
}

// ListChecks returns the sorted names of all registered checks.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
