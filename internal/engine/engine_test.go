package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wesleyorama2/throttler/internal/config"
	"github.com/wesleyorama2/throttler/internal/metrics"
)

// manualClock advances only when work or sleeps advance it. It is used from
// the execution goroutine only.
type manualClock struct {
	now int64
}

func (c *manualClock) NanoTime() int64 { return c.now }

func (c *manualClock) Sleep(ctx context.Context, nanos int64) (int64, error) {
	if nanos > 0 {
		c.now += nanos
	}
	return 0, nil
}

func (c *manualClock) work(d time.Duration) func() error {
	return func() error {
		c.now += int64(d)
		return nil
	}
}

func newConfig(t *testing.T, workFactor float64, iterations int64) *config.RunConfig {
	t.Helper()
	cfg := &config.RunConfig{WorkFactor: workFactor, Iterations: iterations}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestNewEngine_Errors(t *testing.T) {
	_, err := NewEngine(nil)
	require.Error(t, err)

	cfg := newConfig(t, 1.0, 10)
	cfg.WorkFactor = 0
	_, err = NewEngine(cfg)
	require.Error(t, err)

	var verrs *config.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestEngine_IterationBoundedRun(t *testing.T) {
	clock := &manualClock{}
	cfg := newConfig(t, 0.25, 100)

	e, err := NewEngine(cfg, WithClock(clock), WithWork(clock.work(time.Millisecond)))
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, e.ID(), result.ID)
	assert.Equal(t, int64(100), result.Metrics.Executions)
	assert.Equal(t, 100*time.Millisecond, result.Metrics.WorkTime)
	assert.Equal(t, 300*time.Millisecond, result.Metrics.IdleTime)
	assert.InDelta(t, 0.25, result.AchievedWorkFactor, 1e-9)
	assert.InDelta(t, 0.0, result.RatioError, 1e-9)
	assert.False(t, result.Interrupted)
	assert.True(t, result.Passed)
	assert.False(t, e.IsRunning())

	require.Len(t, result.Stages, 1)
	assert.Equal(t, "steady", result.Stages[0].Name)
	assert.Equal(t, int64(100), result.Stages[0].Executions)
}

func TestEngine_UnthrottledRunNeverSleeps(t *testing.T) {
	clock := &manualClock{}
	cfg := newConfig(t, 1.0, 50)

	e, err := NewEngine(cfg, WithClock(clock), WithWork(clock.work(time.Millisecond)))
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(50), result.Metrics.Executions)
	assert.Zero(t, result.Metrics.Sleeps)
	assert.Equal(t, 1.0, result.AchievedWorkFactor)
}

func TestEngine_WorkFailuresAreCountedNotFatal(t *testing.T) {
	clock := &manualClock{}
	maxFailureRate := 0.1
	cfg := newConfig(t, 0.5, 100)
	cfg.Thresholds = &config.ThresholdsConfig{MaxRatioError: 0.01, MaxFailureRate: &maxFailureRate}

	calls := 0
	work := func() error {
		calls++
		clock.now += int64(time.Millisecond)
		if calls%2 == 0 {
			return errors.New("boom")
		}
		return nil
	}

	e, err := NewEngine(cfg, WithClock(clock), WithWork(work))
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(100), result.Metrics.Executions)
	assert.Equal(t, int64(50), result.Metrics.Failures)
	assert.InDelta(t, 0.5, result.Metrics.FailureRate, 1e-9)

	// Failed units are neither timed as work nor paid for with idle time.
	assert.Equal(t, 50*time.Millisecond, result.Metrics.WorkTime)
	assert.Equal(t, 50*time.Millisecond, result.Metrics.IdleTime)

	require.Len(t, result.Thresholds, 2)
	assert.True(t, result.Thresholds[0].Passed)
	assert.False(t, result.Thresholds[1].Passed)
	assert.Equal(t, "failure_rate", result.Thresholds[1].Name)
	assert.False(t, result.Passed)
}

func TestEngine_CancelledContext(t *testing.T) {
	clock := &manualClock{}
	cfg := newConfig(t, 0.5, 10)

	e, err := NewEngine(cfg, WithClock(clock), WithWork(clock.work(time.Millisecond)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	assert.Zero(t, result.Metrics.Executions)
}

func TestEngine_Stages(t *testing.T) {
	clock := &manualClock{}
	cfg := &config.RunConfig{
		WorkFactor: 1.0,
		Stages: []config.StageConfig{
			{Duration: config.Duration(60 * time.Millisecond), WorkFactor: 1.0, Name: "full"},
			{Duration: config.Duration(60 * time.Millisecond), WorkFactor: 0.5, Name: "half"},
		},
	}
	config.ApplyDefaults(cfg)

	work := func() error {
		clock.now += int64(time.Millisecond)
		time.Sleep(50 * time.Microsecond)
		return nil
	}

	m := metrics.NewEngine()
	e, err := NewEngine(cfg, WithClock(clock), WithWork(work), WithMetrics(m))
	require.NoError(t, err)
	assert.Same(t, m, e.Metrics())

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Stages, 2)
	assert.Equal(t, "full", result.Stages[0].Name)
	assert.Equal(t, "half", result.Stages[1].Name)
	assert.Positive(t, result.Stages[0].Executions)
	assert.Positive(t, result.Stages[1].Executions)
	assert.InDelta(t, 1.0, result.Stages[0].AchievedWorkFactor, 0.05)
	assert.InDelta(t, 0.5, result.Stages[1].AchievedWorkFactor, 0.05)
	assert.Equal(t, 0.5, result.TargetWorkFactor)
	assert.GreaterOrEqual(t, result.Duration, 100*time.Millisecond)
}

func TestEngine_ConcurrentRunRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	work := func() error {
		close(started)
		<-release
		return nil
	}

	e, err := NewEngine(newConfig(t, 1.0, 1), WithWork(work))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.Run(context.Background())
		done <- err
	}()

	<-started
	assert.True(t, e.IsRunning())

	result, err := e.Run(context.Background())
	assert.Nil(t, result)
	assert.EqualError(t, err, "engine is already running")

	close(release)
	require.NoError(t, <-done)
	assert.False(t, e.IsRunning())
}

func TestEngine_LogsCarryRunID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	clock := &manualClock{}
	cfg := newConfig(t, 0.5, 5)

	e, err := NewEngine(cfg, WithClock(clock), WithWork(clock.work(time.Millisecond)), WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.NoError(t, err)

	started := logs.FilterMessage("run started").All()
	require.Len(t, started, 1)
	assert.Equal(t, e.ID(), started[0].ContextMap()["run_id"])

	assert.Equal(t, 1, logs.FilterMessage("run finished").Len())
	// The first iteration always reports progress.
	assert.GreaterOrEqual(t, logs.FilterMessage("progress").Len(), 1)
}

func TestStageResults_DropsSupersededStages(t *testing.T) {
	start := time.Now()
	history := []metrics.StageChange{
		{Name: "a", WorkFactor: 1.0, Timestamp: start},
		{Name: "b", WorkFactor: 0.5, Timestamp: start},
		{Name: "c", WorkFactor: 0.25, Timestamp: start.Add(time.Second), Executions: 10, WorkNanos: 100, IdleNanos: 100},
	}
	final := &metrics.Snapshot{Executions: 20, WorkTime: 200, IdleTime: 400}

	results := stageResults(history, final, start.Add(2*time.Second))

	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Name)
	assert.Equal(t, int64(10), results[0].Executions)
	assert.InDelta(t, 0.5, results[0].AchievedWorkFactor, 1e-9)
	assert.Equal(t, time.Second, results[0].Duration)

	assert.Equal(t, "c", results[1].Name)
	assert.InDelta(t, 0.25, results[1].AchievedWorkFactor, 1e-9)
	assert.InDelta(t, 0.0, results[1].RatioError, 1e-9)
}

func TestEvaluateThresholds(t *testing.T) {
	rate := 0.2
	tests := []struct {
		name       string
		thresholds *config.ThresholdsConfig
		ratioError float64
		failure    float64
		want       []bool
	}{
		{name: "none", thresholds: nil, want: nil},
		{name: "ratio pass", thresholds: &config.ThresholdsConfig{MaxRatioError: 0.05}, ratioError: 0.01, want: []bool{true}},
		{name: "ratio fail", thresholds: &config.ThresholdsConfig{MaxRatioError: 0.05}, ratioError: 0.1, want: []bool{false}},
		{name: "failure rate at limit", thresholds: &config.ThresholdsConfig{MaxFailureRate: &rate}, failure: 0.2, want: []bool{true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &Result{RatioError: tt.ratioError, Metrics: &metrics.Snapshot{FailureRate: tt.failure}}
			got := evaluateThresholds(tt.thresholds, result)

			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want, got[i].Passed, got[i].Message)
			}
		})
	}
}
