package metrics

import (
	"context"
	"time"

	"github.com/wesleyorama2/throttler/throttle"
)

// InstrumentedClock wraps a throttle.Clock and records every sleep into an
// Engine. Unthrottled executions never reach the clock, so only throttled
// work produces sleep records.
type InstrumentedClock struct {
	inner  throttle.Clock
	engine *Engine
}

var _ throttle.Clock = (*InstrumentedClock)(nil)

// NewInstrumentedClock returns a clock that delegates to inner and records
// into engine.
func NewInstrumentedClock(inner throttle.Clock, engine *Engine) *InstrumentedClock {
	return &InstrumentedClock{inner: inner, engine: engine}
}

// NanoTime implements throttle.Clock.
func (c *InstrumentedClock) NanoTime() int64 {
	return c.inner.NanoTime()
}

// Sleep implements throttle.Clock.
func (c *InstrumentedClock) Sleep(ctx context.Context, nanos int64) (int64, error) {
	remaining, err := c.inner.Sleep(ctx, nanos)
	c.engine.RecordSleep(time.Duration(nanos), time.Duration(nanos-remaining), err != nil)
	c.engine.SetPendingNanos(remaining)
	return remaining, err
}
