package metrics

import "time"

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	// Executions is the number of work units run (including failed ones)
	Executions int64 `json:"executions"`

	// Failures is the number of work units that returned an error
	Failures int64 `json:"failures"`

	// FailureRate is the fraction of failed work units (0.0 to 1.0)
	FailureRate float64 `json:"failureRate"`

	// Sleeps is the number of idle delays attempted
	Sleeps int64 `json:"sleeps"`

	// InterruptedSleeps is the number of idle delays cut short by cancellation
	InterruptedSleeps int64 `json:"interruptedSleeps"`

	// WorkTime is the total time spent in successful work
	WorkTime time.Duration `json:"workTime"`

	// IdleTime is the total idle time actually delivered
	IdleTime time.Duration `json:"idleTime"`

	// RequestedIdleTime is the total idle time asked of the clock
	RequestedIdleTime time.Duration `json:"requestedIdleTime"`

	// TargetWorkFactor is the work factor in force at snapshot time
	TargetWorkFactor float64 `json:"targetWorkFactor"`

	// AchievedWorkFactor is WorkTime / (WorkTime + IdleTime)
	AchievedWorkFactor float64 `json:"achievedWorkFactor"`

	// PendingDelay is the executor's outstanding idle debt
	PendingDelay time.Duration `json:"pendingDelay"`

	// Work and Idle hold duration distributions
	Work DurationStats `json:"work"`
	Idle DurationStats `json:"idle"`

	// Throughput is work units per second of wall time
	Throughput float64 `json:"throughput"`

	CurrentStage string        `json:"currentStage,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	StartTime    time.Time     `json:"startTime"`
	Timestamp    time.Time     `json:"timestamp"`
}

// DurationStats contains duration distribution statistics.
type DurationStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// StageChange records when a stage started and the counters at that moment.
type StageChange struct {
	Name       string    `json:"name"`
	WorkFactor float64   `json:"workFactor"`
	Timestamp  time.Time `json:"timestamp"`
	Executions int64     `json:"executions"`
	WorkNanos  int64     `json:"workNanos"`
	IdleNanos  int64     `json:"idleNanos"`
}
