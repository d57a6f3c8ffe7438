package monitoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker runs named dependency checks, on demand or periodically in
// the background. Background runs cache their last result so probes stay
// cheap.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  []HealthCheck
	results map[string]checkResult
	logger  *zap.SugaredLogger
}

type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Interval time.Duration
	Timeout  time.Duration
	// Critical failures make the whole status unhealthy; others only
	// show up in Checks.
	Critical bool
}

type checkResult struct {
	err error
	at  time.Time
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker(logger *zap.SugaredLogger) *HealthChecker {
	return &HealthChecker{
		results: make(map[string]checkResult),
		logger:  logger,
	}
}

func (h *HealthChecker) AddCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// CheckAll runs every check now, each under its own timeout.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]error, len(checks))
	)
	for _, check := range checks {
		wg.Add(1)
		go func(check HealthCheck) {
			defer wg.Done()
			err := h.run(ctx, check)
			mu.Lock()
			results[check.Name] = err
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	return h.status(checks, results)
}

// Cached reports the results of the last background runs. Checks that have
// not run yet are reported as pending and do not fail the status.
func (h *HealthChecker) Cached() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make(map[string]error, len(h.results))
	for name, r := range h.results {
		results[name] = r.err
	}
	status := h.status(h.checks, results)
	for _, check := range h.checks {
		if _, ok := h.results[check.Name]; !ok {
			status.Checks[check.Name] = "pending"
		}
	}
	return status
}

func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}

func (h *HealthChecker) status(checks []HealthCheck, results map[string]error) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(checks)),
	}
	for _, check := range checks {
		err, ran := results[check.Name]
		if !ran {
			continue
		}
		if err != nil {
			status.Checks[check.Name] = err.Error()
			if check.Critical {
				status.Status = StatusUnhealthy
			}
			continue
		}
		status.Checks[check.Name] = StatusHealthy
	}
	return status
}

func (h *HealthChecker) run(ctx context.Context, check HealthCheck) (err error) {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()
	return check.Check(ctx)
}

// StartBackgroundChecks runs each check on its interval until ctx is done.
func (h *HealthChecker) StartBackgroundChecks(ctx context.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, check := range h.checks {
		go h.runPeriodically(ctx, check)
	}
}

func (h *HealthChecker) runPeriodically(ctx context.Context, check HealthCheck) {
	interval := check.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := h.run(ctx, check)
		h.record(check.Name, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *HealthChecker) record(name string, err error) {
	h.mu.Lock()
	prev, seen := h.results[name]
	h.results[name] = checkResult{err: err, at: time.Now()}
	h.mu.Unlock()

	switch {
	case err != nil && (!seen || prev.err == nil):
		h.logger.Warnw("health check failing", "check", name, "error", err)
	case err == nil && seen && prev.err != nil:
		h.logger.Infow("health check recovered", "check", name)
	}
}

// Names lists the registered checks in name order.
func (h *HealthChecker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for _, c := range h.checks {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
