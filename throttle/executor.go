package throttle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

const (
	// MaxWorkFactor runs work at full throughput.
	MaxWorkFactor = 1.0

	// MinWorkFactor is the lowest accepted work factor (1 unit of work per 999 idle).
	MinWorkFactor = 0.001
)

// ErrInvalidWorkFactor is returned by SetWorkFactor for factors outside
// [MinWorkFactor, MaxWorkFactor].
var ErrInvalidWorkFactor = errors.New("invalid work factor")

// Executor performs work on the calling goroutine and inserts idle delays to
// approximate the configured work factor.
//
// Executor is NOT safe for concurrent calls to Execute. The work factor may be
// changed from any goroutine.
type Executor struct {
	clock Clock

	// workToIdle holds the float64 bits of (1-f)/f. Zero means unthrottled.
	workToIdle atomic.Uint64

	// pendingNanos is owned by the goroutine calling Execute.
	pendingNanos int64
}

// New creates an unthrottled executor backed by the system clock.
func New() *Executor {
	return NewWithClock(NewSystemClock())
}

// NewWithClock creates an unthrottled executor backed by the given clock.
// Tests use this to drive the executor deterministically.
func NewWithClock(clock Clock) *Executor {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &Executor{clock: clock}
}

// Execute runs work on the current goroutine. If throttling is enabled (the
// work factor is below 1.0) Execute may sleep before returning to satisfy the
// requested work factor.
//
// An error returned by work is returned unchanged and no delay is accounted
// for that call. A cancelled ctx ends the delay early without an error; the
// undelivered part of the delay stays pending.
func (e *Executor) Execute(ctx context.Context, work func() error) error {
	ratio := math.Float64frombits(e.workToIdle.Load())

	// Unthrottled: no clock reads, no accounting.
	if ratio == 0.0 {
		return work()
	}

	// Zero-value executor.
	if e.clock == nil {
		e.clock = NewSystemClock()
	}

	start := e.clock.NanoTime()
	if err := work(); err != nil {
		return err
	}
	workNanos := e.clock.NanoTime() - start

	// Pending grows here but is replaced by the sleep remainder below, so it
	// does not keep growing across calls.
	e.pendingNanos = ClampAdd(e.pendingNanos, scaleNanos(workNanos, ratio))
	if e.pendingNanos > 0 {
		// An interrupted sleep is not an error for the caller: ctx stays
		// cancelled and the remainder is carried forward.
		remaining, _ := e.clock.Sleep(ctx, e.pendingNanos)
		e.pendingNanos = remaining
	}

	return nil
}

// SetWorkFactor sets the work factor for this executor. A factor of 1.0 runs
// at full throughput. Lower factors introduce delays into Execute: with 0.7,
// about 70% of the time in Execute is spent running work and 30% idle.
//
// The factor must be within [MinWorkFactor, MaxWorkFactor]; otherwise
// ErrInvalidWorkFactor is returned and the current factor is kept.
func (e *Executor) SetWorkFactor(workFactor float64) error {
	if math.IsNaN(workFactor) || workFactor < MinWorkFactor {
		return fmt.Errorf("%w: %v must be >= %v", ErrInvalidWorkFactor, workFactor, MinWorkFactor)
	}
	if workFactor > MaxWorkFactor {
		return fmt.Errorf("%w: %v must be <= %v", ErrInvalidWorkFactor, workFactor, MaxWorkFactor)
	}

	e.workToIdle.Store(math.Float64bits((1.0 - workFactor) / workFactor))
	return nil
}

// WorkFactor returns the current work factor.
func (e *Executor) WorkFactor() float64 {
	return 1.0 / (math.Float64frombits(e.workToIdle.Load()) + 1.0)
}

// PendingNanos returns the delay (in nanoseconds) still owed to subsequent
// work. It is the running error between the delay the policy asked for and
// the delay the clock delivered, and may be negative after an oversleep.
//
// It must be called from the goroutine that calls Execute.
func (e *Executor) PendingNanos() int64 {
	return e.pendingNanos
}

func (e *Executor) setPendingNanos(nanos int64) {
	e.pendingNanos = nanos
}

// scaleNanos truncates nanos*ratio toward zero, saturating at the int64 range.
func scaleNanos(nanos int64, ratio float64) int64 {
	scaled := float64(nanos) * ratio
	switch {
	case scaled >= math.MaxInt64:
		return math.MaxInt64
	case scaled <= math.MinInt64:
		return math.MinInt64
	}
	return int64(scaled)
}
