package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"locallive/internal/core/ports"
	"locallive/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
)

func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck(HealthCheck{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		Interval: interval,
		Timeout:  timeout,
		Critical: true,
	})
}

// AddStreamRepositoryCheck lists live streams, which every page needs.
func (h *HealthChecker) AddStreamRepositoryCheck(repo ports.StreamRepository, interval, timeout time.Duration) {
	h.AddCheck(HealthCheck{
		Name: "streams",
		Check: func(ctx context.Context) error {
			_, err := repo.ListLive(ctx)
			return err
		},
		Interval: interval,
		Timeout:  timeout,
		Critical: true,
	})
}

// AddBreakerCheck reports an open breaker without failing readiness; the
// guarded dependency is optional.
func (h *HealthChecker) AddBreakerCheck(name string, cb *circuitbreaker.CircuitBreaker, interval time.Duration) {
	h.AddCheck(HealthCheck{
		Name: name,
		Check: func(ctx context.Context) error {
			if state := cb.GetState(); state != circuitbreaker.StateClosed {
				return fmt.Errorf("circuit breaker %s", state)
			}
			return nil
		},
		Interval: interval,
		Timeout:  time.Second,
	})
}

// AddHTTPCheck probes a dependency's health endpoint, such as the signal
// server's.
func (h *HealthChecker) AddHTTPCheck(name, url string, critical bool, interval, timeout time.Duration) {
	client := &http.Client{Timeout: timeout}
	h.AddCheck(HealthCheck{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("%s returned %d", url, resp.StatusCode)
			}
			return nil
		},
		Interval: interval,
		Timeout:  timeout,
		Critical: critical,
	})
}
