package engine

import (
	"fmt"
	"time"

	"github.com/wesleyorama2/throttler/internal/config"
	"github.com/wesleyorama2/throttler/internal/metrics"
)

// Result is the outcome of a completed (or interrupted) run.
type Result struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	// TargetWorkFactor is the factor in force when the run ended.
	TargetWorkFactor   float64 `json:"targetWorkFactor"`
	AchievedWorkFactor float64 `json:"achievedWorkFactor"`

	// RatioError is the largest |achieved - target| over all stages that ran work.
	RatioError float64 `json:"ratioError"`

	Stages     []StageResult     `json:"stages"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`
	Metrics    *metrics.Snapshot `json:"metrics"`

	Interrupted bool `json:"interrupted"`
	Passed      bool `json:"passed"`
}

// StageResult summarizes one work factor stage.
type StageResult struct {
	Name               string        `json:"name"`
	TargetWorkFactor   float64       `json:"targetWorkFactor"`
	AchievedWorkFactor float64       `json:"achievedWorkFactor"`
	RatioError         float64       `json:"ratioError"`
	Executions         int64         `json:"executions"`
	Duration           time.Duration `json:"duration"`
}

// ThresholdResult is the outcome of one pass/fail check.
type ThresholdResult struct {
	Name    string  `json:"name"`
	Limit   float64 `json:"limit"`
	Actual  float64 `json:"actual"`
	Passed  bool    `json:"passed"`
	Message string  `json:"message"`
}

func evaluateThresholds(t *config.ThresholdsConfig, result *Result) []ThresholdResult {
	if t == nil {
		return nil
	}

	var out []ThresholdResult
	if t.MaxRatioError > 0 {
		out = append(out, check("ratio_error", t.MaxRatioError, result.RatioError))
	}
	if t.MaxFailureRate != nil {
		out = append(out, check("failure_rate", *t.MaxFailureRate, result.Metrics.FailureRate))
	}
	return out
}

func check(name string, limit, actual float64) ThresholdResult {
	passed := actual <= limit
	op := "<="
	if !passed {
		op = ">"
	}
	return ThresholdResult{
		Name:    name,
		Limit:   limit,
		Actual:  actual,
		Passed:  passed,
		Message: fmt.Sprintf("%s %.4f %s %.4f", name, actual, op, limit),
	}
}
