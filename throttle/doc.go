// Package throttle provides a work-throttling executor that runs units of work
// on the calling goroutine and optionally slows the rate of execution.
//
// By default work submitted with [Executor.Execute] is not throttled. Work is
// throttled by lowering the work factor with [Executor.SetWorkFactor]: a factor
// of 0.7 means roughly 70% of the time spent inside Execute goes to running
// work and 30% to idling.
//
// # Algorithm
//
// After each unit of work the executor measures how long the work took and
// adds the proportional idle time it owes to a pending delay. It then sleeps
// for the pending delay. Whatever the clock could not deliver (timer
// granularity, early wake-up, cancellation) stays pending and is paid on the
// next call, so short-term error evens out over many calls.
//
// # Basic Usage
//
//	exec := throttle.New()
//	if err := exec.SetWorkFactor(0.25); err != nil {
//	    return err
//	}
//
//	for msg := range messages {
//	    if err := exec.Execute(ctx, func() error {
//	        return process(msg)
//	    }); err != nil {
//	        return err
//	    }
//	}
//
// # Thread Safety
//
// Execute must be called from a single goroutine at a time. SetWorkFactor and
// WorkFactor may be called from any goroutine, including while Execute is
// running, so a controller can retune throttling live.
//
// # Cancellation
//
// Cancelling the context passed to Execute cuts the current idle delay short.
// Execute does not report the cancellation as an error; the context itself
// stays cancelled, so the caller observes it through ctx.Err().
package throttle
