package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/ports"
)

// HealthChecker periodically polls a driver's Healthy method on a
// configurable interval, per spec.md §4.10, and exposes the last
// observed result without blocking callers on the driver itself.
// Scheduling uses a real time.Ticker (no Clock abstraction covers
// sleeping), but every observation is stamped with clock.Clock.Now()
// so tests can assert on deterministic timestamps.
type HealthChecker struct {
	driver     ports.DataSourceDriver
	interval   time.Duration
	clk        clock.Clock
	healthy    atomic.Bool
	lastCheck  atomic.Value // time.Time
}

// NewHealthChecker builds a HealthChecker; healthy starts true until the
// first check runs.
func NewHealthChecker(driver ports.DataSourceDriver, interval time.Duration, clk clock.Clock) *HealthChecker {
	if clk == nil {
		clk = clock.Default
	}
	h := &HealthChecker{driver: driver, interval: interval, clk: clk}
	h.healthy.Store(true)
	return h
}

// Run polls until ctx is cancelled. Intended to be started in its own
// goroutine by the caller.
func (h *HealthChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

func (h *HealthChecker) check(ctx context.Context) {
	h.healthy.Store(h.driver.Healthy(ctx))
	h.lastCheck.Store(h.clk.Now())
}

// Healthy returns the most recently observed health state.
func (h *HealthChecker) Healthy() bool { return h.healthy.Load() }

// LastCheckedAt returns the clock time of the most recent check, or the
// zero time if none has run yet.
func (h *HealthChecker) LastCheckedAt() time.Time {
	if t, ok := h.lastCheck.Load().(time.Time); ok {
		return t
	}
	return time.Time{}
}
