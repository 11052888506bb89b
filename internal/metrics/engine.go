// Package metrics collects throttling metrics for a run: how long work took,
// how much idle time was requested and delivered, and how closely the
// achieved work factor follows the target.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects and aggregates throttling metrics using HDR histograms.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters use atomic operations and
// histograms use mutex protection, so a reporter goroutine can take
// snapshots while the execution goroutine records.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	workHist   *hdrhistogram.Histogram
	workHistMu sync.Mutex

	idleHist   *hdrhistogram.Histogram
	idleHistMu sync.Mutex

	executions  atomic.Int64
	failures    atomic.Int64
	sleeps      atomic.Int64
	interrupted atomic.Int64

	workNanos          atomic.Int64
	idleNanos          atomic.Int64
	requestedIdleNanos atomic.Int64

	// Float64 bits of the target work factor
	workFactor   atomic.Uint64
	pendingNanos atomic.Int64

	stageMu      sync.RWMutex
	currentStage string
	stageHistory []StageChange

	// Replaced by Reset while snapshots may be in flight
	startTime atomic.Pointer[time.Time]
	config    EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	e := &Engine{
		workHist:     hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		idleHist:     hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		stageHistory: make([]StageChange, 0),
		config:       config,
	}
	e.workFactor.Store(math.Float64bits(1.0))
	e.markStart()
	return e
}

// RecordWork records one executed unit of work.
func (e *Engine) RecordWork(duration time.Duration, success bool) {
	e.executions.Add(1)
	if !success {
		e.failures.Add(1)
		return
	}

	e.workNanos.Add(int64(duration))

	e.workHistMu.Lock()
	e.workHist.RecordValue(e.clampMicros(duration))
	e.workHistMu.Unlock()
}

// RecordSleep records one idle delay: the amount asked for and the amount
// actually delivered (which may exceed the request on oversleep).
func (e *Engine) RecordSleep(requested, delivered time.Duration, interrupted bool) {
	e.sleeps.Add(1)
	if interrupted {
		e.interrupted.Add(1)
	}

	e.requestedIdleNanos.Add(int64(requested))
	if delivered <= 0 {
		return
	}
	e.idleNanos.Add(int64(delivered))

	e.idleHistMu.Lock()
	e.idleHist.RecordValue(e.clampMicros(delivered))
	e.idleHistMu.Unlock()
}

// SetWorkFactor records the target work factor currently in force.
func (e *Engine) SetWorkFactor(f float64) {
	e.workFactor.Store(math.Float64bits(f))
}

// WorkFactor returns the recorded target work factor.
func (e *Engine) WorkFactor() float64 {
	return math.Float64frombits(e.workFactor.Load())
}

// SetPendingNanos records the executor's outstanding idle debt.
func (e *Engine) SetPendingNanos(n int64) {
	e.pendingNanos.Store(n)
}

// SetStage marks a stage transition.
func (e *Engine) SetStage(name string, workFactor float64) {
	e.stageMu.Lock()
	defer e.stageMu.Unlock()

	e.currentStage = name
	e.stageHistory = append(e.stageHistory, StageChange{
		Name:       name,
		WorkFactor: workFactor,
		Timestamp:  time.Now(),
		Executions: e.executions.Load(),
		WorkNanos:  e.workNanos.Load(),
		IdleNanos:  e.idleNanos.Load(),
	})
}

// Stage returns the name of the current stage.
func (e *Engine) Stage() string {
	e.stageMu.RLock()
	defer e.stageMu.RUnlock()
	return e.currentStage
}

// StageHistory returns a copy of the recorded stage transitions.
func (e *Engine) StageHistory() []StageChange {
	e.stageMu.RLock()
	defer e.stageMu.RUnlock()

	result := make([]StageChange, len(e.stageHistory))
	copy(result, e.stageHistory)
	return result
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) Snapshot() *Snapshot {
	e.workHistMu.Lock()
	work := statsFrom(e.workHist)
	e.workHistMu.Unlock()

	e.idleHistMu.Lock()
	idle := statsFrom(e.idleHist)
	e.idleHistMu.Unlock()

	executions := e.executions.Load()
	failures := e.failures.Load()
	workNanos := e.workNanos.Load()
	idleNanos := e.idleNanos.Load()

	failureRate := 0.0
	if executions > 0 {
		failureRate = float64(failures) / float64(executions)
	}

	startTime := *e.startTime.Load()
	elapsed := time.Since(startTime)
	throughput := 0.0
	if elapsed.Seconds() > 0 {
		throughput = float64(executions) / elapsed.Seconds()
	}

	return &Snapshot{
		Executions:         executions,
		Failures:           failures,
		FailureRate:        failureRate,
		Sleeps:             e.sleeps.Load(),
		InterruptedSleeps:  e.interrupted.Load(),
		WorkTime:           time.Duration(workNanos),
		IdleTime:           time.Duration(idleNanos),
		RequestedIdleTime:  time.Duration(e.requestedIdleNanos.Load()),
		TargetWorkFactor:   e.WorkFactor(),
		AchievedWorkFactor: AchievedWorkFactor(workNanos, idleNanos),
		PendingDelay:       time.Duration(e.pendingNanos.Load()),
		Work:               work,
		Idle:               idle,
		Throughput:         throughput,
		CurrentStage:       e.Stage(),
		Elapsed:            elapsed,
		StartTime:          startTime,
		Timestamp:          time.Now(),
	}
}

// Reset resets all metrics to initial state.
func (e *Engine) Reset() {
	e.workHistMu.Lock()
	e.workHist.Reset()
	e.workHistMu.Unlock()

	e.idleHistMu.Lock()
	e.idleHist.Reset()
	e.idleHistMu.Unlock()

	e.executions.Store(0)
	e.failures.Store(0)
	e.sleeps.Store(0)
	e.interrupted.Store(0)
	e.workNanos.Store(0)
	e.idleNanos.Store(0)
	e.requestedIdleNanos.Store(0)
	e.pendingNanos.Store(0)
	e.workFactor.Store(math.Float64bits(1.0))

	e.stageMu.Lock()
	e.currentStage = ""
	e.stageHistory = make([]StageChange, 0)
	e.stageMu.Unlock()

	e.markStart()
}

func (e *Engine) markStart() {
	now := time.Now()
	e.startTime.Store(&now)
}

// AchievedWorkFactor is the fraction of busy time: work / (work + idle).
// With no recorded time it reports full throughput.
func AchievedWorkFactor(workNanos, idleNanos int64) float64 {
	total := workNanos + idleNanos
	if total <= 0 {
		return 1.0
	}
	return float64(workNanos) / float64(total)
}

// clampMicros converts d to microseconds within the histogram range.
func (e *Engine) clampMicros(d time.Duration) int64 {
	micros := d.Microseconds()
	if micros < e.config.HistogramMin {
		micros = e.config.HistogramMin
	}
	if micros > e.config.HistogramMax {
		micros = e.config.HistogramMax
	}
	return micros
}

func statsFrom(h *hdrhistogram.Histogram) DurationStats {
	return DurationStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}
