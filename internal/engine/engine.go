// Package engine runs a configured workload through a throttling executor,
// retunes the work factor on schedule, and reports how closely the achieved
// busy/idle ratio tracks the target.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/throttler/internal/config"
	"github.com/wesleyorama2/throttler/internal/metrics"
	"github.com/wesleyorama2/throttler/internal/workload"
	"github.com/wesleyorama2/throttler/throttle"
)

// Engine orchestrates a single throttled run.
//
// The execution loop runs on the goroutine that calls Run, which is the only
// goroutine calling Execute. A controller goroutine walks the configured
// stages and changes the work factor concurrently.
type Engine struct {
	id       string
	config   *config.RunConfig
	executor *throttle.Executor
	clock    throttle.Clock
	metrics  *metrics.Engine
	work     workload.Work
	logger   *zap.Logger

	running atomic.Bool
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger  *zap.Logger
	clock   throttle.Clock
	metrics *metrics.Engine
	work    workload.Work
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithClock replaces the system clock, e.g. with a deterministic clock in tests.
func WithClock(clock throttle.Clock) Option {
	return func(o *engineOptions) { o.clock = clock }
}

// WithMetrics supplies the metrics engine, so callers can export it while
// the run is in progress.
func WithMetrics(m *metrics.Engine) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// WithWork replaces the configured synthetic workload.
func WithWork(work workload.Work) Option {
	return func(o *engineOptions) { o.work = work }
}

// NewEngine creates an engine for cfg. cfg must already have defaults applied.
func NewEngine(cfg *config.RunConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.clock == nil {
		o.clock = throttle.NewSystemClock()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewEngine()
	}
	if o.work == nil {
		work, err := workload.New(cfg.Workload)
		if err != nil {
			return nil, fmt.Errorf("failed to build workload: %w", err)
		}
		o.work = work
	}

	clock := metrics.NewInstrumentedClock(o.clock, o.metrics)
	executor := throttle.NewWithClock(clock)
	if err := executor.SetWorkFactor(cfg.WorkFactor); err != nil {
		return nil, err
	}
	o.metrics.SetWorkFactor(cfg.WorkFactor)

	id := uuid.NewString()

	return &Engine{
		id:       id,
		config:   cfg,
		executor: executor,
		clock:    clock,
		metrics:  o.metrics,
		work:     o.work,
		logger:   o.logger.With(zap.String("run_id", id), zap.String("run", cfg.Name)),
	}, nil
}

// ID returns the unique identifier of this run.
func (e *Engine) ID() string {
	return e.id
}

// Metrics returns the metrics engine.
func (e *Engine) Metrics() *metrics.Engine {
	return e.metrics
}

// IsRunning reports whether Run is in progress.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Run executes the run and blocks until it completes.
//
// The run ends when the configured duration (or total stage duration)
// elapses, the iteration cap is reached, or ctx is cancelled. Cancellation
// is not an error: the partial result is returned with Interrupted set.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, errors.New("engine is already running")
	}
	defer e.running.Store(false)

	runCtx, cancel := e.runContext(ctx)
	defer cancel()

	startTime := time.Now()
	e.logger.Info("run started",
		zap.Float64("work_factor", e.config.WorkFactor),
		zap.Duration("duration", e.config.TotalDuration()),
		zap.Int64("iterations", e.config.Iterations),
		zap.String("workload", string(e.config.Workload.Type)),
	)

	var wg sync.WaitGroup
	controllerCtx, stopController := context.WithCancel(runCtx)
	if len(e.config.Stages) == 0 {
		e.applyStage("steady", e.config.WorkFactor)
	} else {
		e.applyStage(e.config.Stages[0].Name, e.config.Stages[0].WorkFactor)
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runStages(controllerCtx)
		}()
	}

	e.loop(runCtx)

	stopController()
	wg.Wait()

	endTime := time.Now()
	interrupted := ctx.Err() != nil

	result := e.buildResult(startTime, endTime, interrupted)

	e.logger.Info("run finished",
		zap.Int64("executions", result.Metrics.Executions),
		zap.Float64("achieved_work_factor", result.AchievedWorkFactor),
		zap.Float64("ratio_error", result.RatioError),
		zap.Bool("interrupted", interrupted),
		zap.Bool("passed", result.Passed),
	)

	return result, nil
}

// runContext bounds ctx by the configured run duration.
func (e *Engine) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := e.config.TotalDuration(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// loop is the single-goroutine execution loop.
func (e *Engine) loop(ctx context.Context) {
	progress := rate.Sometimes{Interval: e.config.ProgressInterval.Duration()}
	var executed int64

	for ctx.Err() == nil {
		if e.config.Iterations > 0 && executed >= e.config.Iterations {
			return
		}

		err := e.executor.Execute(ctx, e.timedWork)
		executed++
		if err != nil {
			e.logger.Debug("work failed", zap.Int64("unit", executed), zap.Error(err))
		}
		e.metrics.SetPendingNanos(e.executor.PendingNanos())

		progress.Do(e.logProgress)
	}
}

// timedWork runs one unit of work and records its duration.
func (e *Engine) timedWork() error {
	start := e.clock.NanoTime()
	err := e.work()
	e.metrics.RecordWork(time.Duration(e.clock.NanoTime()-start), err == nil)
	return err
}

func (e *Engine) logProgress() {
	s := e.metrics.Snapshot()
	e.logger.Info("progress",
		zap.String("stage", s.CurrentStage),
		zap.Int64("executions", s.Executions),
		zap.Int64("failures", s.Failures),
		zap.Float64("target_work_factor", s.TargetWorkFactor),
		zap.Float64("achieved_work_factor", s.AchievedWorkFactor),
		zap.Duration("pending_delay", s.PendingDelay),
	)
}

// runStages walks the stages after the first (already applied) one.
func (e *Engine) runStages(ctx context.Context) {
	stages := e.config.Stages
	for i := 0; i < len(stages); i++ {
		timer := time.NewTimer(stages[i].Duration.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if i+1 < len(stages) {
			e.applyStage(stages[i+1].Name, stages[i+1].WorkFactor)
		}
	}
}

// applyStage sets the work factor from the controller side.
func (e *Engine) applyStage(name string, workFactor float64) {
	if err := e.executor.SetWorkFactor(workFactor); err != nil {
		// Stages are validated up front; keep the previous factor.
		e.logger.Error("failed to apply stage", zap.String("stage", name), zap.Error(err))
		return
	}
	e.metrics.SetWorkFactor(workFactor)
	e.metrics.SetStage(name, workFactor)
	e.logger.Debug("stage applied", zap.String("stage", name), zap.Float64("work_factor", workFactor))
}

// buildResult assembles the final result from the collected metrics.
func (e *Engine) buildResult(startTime, endTime time.Time, interrupted bool) *Result {
	snapshot := e.metrics.Snapshot()
	stages := stageResults(e.metrics.StageHistory(), snapshot, endTime)

	ratioError := 0.0
	for _, s := range stages {
		if s.Executions > 0 {
			ratioError = math.Max(ratioError, s.RatioError)
		}
	}

	result := &Result{
		ID:                 e.id,
		Name:               e.config.Name,
		Description:        e.config.Description,
		StartTime:          startTime,
		EndTime:            endTime,
		Duration:           endTime.Sub(startTime),
		TargetWorkFactor:   snapshot.TargetWorkFactor,
		AchievedWorkFactor: snapshot.AchievedWorkFactor,
		RatioError:         ratioError,
		Stages:             stages,
		Metrics:            snapshot,
		Interrupted:        interrupted,
	}
	result.Thresholds = evaluateThresholds(e.config.Thresholds, result)
	result.Passed = true
	for _, t := range result.Thresholds {
		if !t.Passed {
			result.Passed = false
		}
	}

	return result
}

// stageResults splits the run into stages using the counters captured at
// each transition. Zero-length transitions (superseded before any work ran)
// are dropped.
func stageResults(history []metrics.StageChange, final *metrics.Snapshot, endTime time.Time) []StageResult {
	results := make([]StageResult, 0, len(history))

	for i, change := range history {
		endExec := final.Executions
		endWork := int64(final.WorkTime)
		endIdle := int64(final.IdleTime)
		stageEnd := endTime
		if i+1 < len(history) {
			next := history[i+1]
			endExec, endWork, endIdle, stageEnd = next.Executions, next.WorkNanos, next.IdleNanos, next.Timestamp
		}

		executions := endExec - change.Executions
		if executions == 0 && i+1 < len(history) {
			continue
		}

		achieved := metrics.AchievedWorkFactor(endWork-change.WorkNanos, endIdle-change.IdleNanos)
		results = append(results, StageResult{
			Name:               change.Name,
			TargetWorkFactor:   change.WorkFactor,
			AchievedWorkFactor: achieved,
			RatioError:         math.Abs(achieved - change.WorkFactor),
			Executions:         executions,
			Duration:           stageEnd.Sub(change.Timestamp),
		})
	}

	return results
}
