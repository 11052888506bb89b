// Package workload provides synthetic units of work for throttled runs.
package workload

import (
	"errors"
	"fmt"
	"time"

	"github.com/wesleyorama2/throttler/internal/config"
)

// ErrSyntheticFailure is returned by the fail workload on its failing units.
var ErrSyntheticFailure = errors.New("synthetic work failure")

// Work is a single unit of work.
type Work func() error

// New builds the unit of work described by cfg.
func New(cfg config.WorkloadConfig) (Work, error) {
	d := cfg.Duration.Duration()
	if d <= 0 {
		return nil, fmt.Errorf("workload duration must be > 0, got %v", d)
	}

	switch cfg.Type {
	case config.WorkloadSpin, "":
		return Spin(d), nil
	case config.WorkloadSleep:
		return Sleep(d), nil
	case config.WorkloadFail:
		if cfg.FailEvery <= 0 {
			return nil, fmt.Errorf("failEvery must be > 0, got %d", cfg.FailEvery)
		}
		return FailEvery(cfg.FailEvery, Spin(d)), nil
	default:
		return nil, fmt.Errorf("unknown workload type: %s", cfg.Type)
	}
}

// Spin busy-waits for d, keeping the goroutine on the CPU.
func Spin(d time.Duration) Work {
	return func() error {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
		}
		return nil
	}
}

// Sleep blocks for d.
func Sleep(d time.Duration) Work {
	return func() error {
		time.Sleep(d)
		return nil
	}
}

// FailEvery wraps work so that every nth call fails with ErrSyntheticFailure
// without running it. The returned Work is not safe for concurrent use.
func FailEvery(n int, work Work) Work {
	calls := 0
	return func() error {
		calls++
		if calls%n == 0 {
			return fmt.Errorf("unit %d: %w", calls, ErrSyntheticFailure)
		}
		return work()
	}
}
