package health

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// Status values reported by checks and probes.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 5 * time.Second

// CheckFunc is a function that performs a health check for a component.
// It returns nil if the component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Status is StatusOK or StatusUnhealthy.
	Status string `json:"status"`

	// Message explains an unhealthy status.
	Message string `json:"message,omitempty"`

	// DurationMS is how long the check took.
	DurationMS float64 `json:"duration_ms"`
}

// HealthStatus represents the overall health status of the relay.
type HealthStatus struct {
	// Status is StatusOK for liveness, StatusReady or StatusDegraded for
	// readiness.
	Status string `json:"status"`

	// Checks holds the per-component results of a readiness probe.
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// InFlight is the number of tracked in-flight requests, when known.
	InFlight *int `json:"in_flight,omitempty"`

	// Timestamp is when the probe ran.
	Timestamp time.Time `json:"timestamp"`
}

// Checker manages health checks for the relay's components.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc

	checkTimeout time.Duration
	inFlight     func() int
}

// New creates a new health checker. A zero timeout means DefaultCheckTimeout.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = DefaultCheckTimeout
	}

	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck registers a health check function for a named component.
// If a check with the same name already exists, it will be replaced.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = check
}

// UnregisterCheck removes a health check for a named component.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.checks, name)
}

// ReportInFlight makes liveness responses include n().
func (c *Checker) ReportInFlight(n func() int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = n
}

// ListChecks returns the sorted names of the registered checks.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Sorted(maps.Keys(c.checks))
}

// CheckLiveness reports that the process is serving requests.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	inFlight := c.inFlight
	c.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
	}
	if inFlight != nil {
		n := inFlight()
		status.InFlight = &n
	}
	return status
}

// CheckReadiness runs every registered check concurrently. The relay is
// ready when all of them pass, degraded otherwise.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for name, check := range checks {
		wg.Go(func() {
			result := c.runCheck(ctx, check)

			mu.Lock()
			results[name] = result
			mu.Unlock()
		})
	}
	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status != StatusOK {
			status = StatusDegraded
		}
	}

	return HealthStatus{
		Status:    status,
		Checks:    results,
		Timestamp: time.Now(),
	}
}

// runCheck executes a single health check with timeout. A check that
// ignores its context is abandoned when the timeout expires.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()

	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	var err error
	select {
	case err = <-errChan:
	case <-checkCtx.Done():
		err = ErrCheckTimeout
	}

	result := CheckResult{
		Status:     StatusOK,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
