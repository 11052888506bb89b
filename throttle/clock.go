package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSleepInterrupted is returned (wrapping the context error) by a Clock
// whose Sleep was cut short by context cancellation.
var ErrSleepInterrupted = errors.New("sleep interrupted")

// Clock is a high-resolution time source with a sleep primitive.
type Clock interface {
	// NanoTime returns a monotonic timestamp in nanoseconds. Only differences
	// between two readings are meaningful.
	NanoTime() int64

	// Sleep blocks for up to nanos nanoseconds and returns the part of the
	// request that was not delivered. The remainder is negative when the
	// clock overslept. If ctx is cancelled during the sleep, Sleep returns the
	// undelivered remainder and an error wrapping ErrSleepInterrupted.
	Sleep(ctx context.Context, nanos int64) (remaining int64, err error)
}

// SystemClock is the production Clock backed by the runtime's monotonic
// clock and timers.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock returns a SystemClock anchored at the current instant.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

// NanoTime implements Clock.
func (c *SystemClock) NanoTime() int64 {
	return int64(time.Since(c.epoch))
}

// Sleep implements Clock.
func (c *SystemClock) Sleep(ctx context.Context, nanos int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return nanos, fmt.Errorf("%w: %w", ErrSleepInterrupted, err)
	}
	if nanos <= 0 {
		return nanos, nil
	}

	start := c.NanoTime()
	timer := time.NewTimer(time.Duration(nanos))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nanos - (c.NanoTime() - start), nil
	case <-ctx.Done():
		return nanos - (c.NanoTime() - start), fmt.Errorf("%w: %w", ErrSleepInterrupted, ctx.Err())
	}
}
