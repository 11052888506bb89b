// Package config provides run configuration parsing and validation for the
// throttler tool.
package config

import (
	"time"
)

// RunConfig is the root configuration for a throttled run.
//
// Example YAML:
//
//	name: "consumer backoff"
//	workFactor: 0.5
//	duration: 30s
//	workload:
//	  type: spin
//	  duration: 200us
//	stages:
//	  - duration: 10s
//	    workFactor: 0.1
//	    name: backoff
//	thresholds:
//	  maxRatioError: 0.05
type RunConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the run (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// WorkFactor is the initial fraction of time spent running work
	WorkFactor float64 `json:"workFactor" yaml:"workFactor"`

	// Duration bounds the run; zero means stages (or iterations) decide
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Iterations caps the number of work units; zero means unlimited
	Iterations int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// Workload describes the synthetic unit of work
	Workload WorkloadConfig `json:"workload" yaml:"workload"`

	// Stages retune the work factor while the run is in progress
	Stages []StageConfig `json:"stages,omitempty" yaml:"stages,omitempty"`

	// ProgressInterval is the minimum time between progress log lines
	ProgressInterval Duration `json:"progressInterval,omitempty" yaml:"progressInterval,omitempty"`

	// Thresholds define pass/fail criteria
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// WorkloadType identifies a synthetic workload.
type WorkloadType string

const (
	// WorkloadSpin busy-loops on the CPU for the configured duration.
	WorkloadSpin WorkloadType = "spin"

	// WorkloadSleep blocks for the configured duration.
	WorkloadSleep WorkloadType = "sleep"

	// WorkloadFail spins like WorkloadSpin but fails every FailEvery-th unit.
	WorkloadFail WorkloadType = "fail"
)

// WorkloadConfig defines the unit of work executed on each iteration.
type WorkloadConfig struct {
	Type     WorkloadType `json:"type" yaml:"type"`
	Duration Duration     `json:"duration" yaml:"duration"`

	// FailEvery makes every Nth unit fail (fail workload only)
	FailEvery int `json:"failEvery,omitempty" yaml:"failEvery,omitempty"`
}

// StageConfig sets a new work factor for a period of the run.
type StageConfig struct {
	// Duration of this stage (e.g., "30s", "2m")
	Duration Duration `json:"duration" yaml:"duration"`

	// WorkFactor applied when the stage starts
	WorkFactor float64 `json:"workFactor" yaml:"workFactor"`

	// Name is an optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for a run.
type ThresholdsConfig struct {
	// MaxRatioError is the largest tolerated |achieved - target| work factor
	MaxRatioError float64 `json:"maxRatioError,omitempty" yaml:"maxRatioError,omitempty"`

	// MaxFailureRate is the largest tolerated fraction of failed work units
	MaxFailureRate *float64 `json:"maxFailureRate,omitempty" yaml:"maxFailureRate,omitempty"`
}

// TotalDuration returns how long the run lasts: the explicit duration, or the
// sum of stage durations when no duration is set.
func (c *RunConfig) TotalDuration() time.Duration {
	if c.Duration > 0 {
		return c.Duration.Duration()
	}
	var total time.Duration
	for _, stage := range c.Stages {
		total += stage.Duration.Duration()
	}
	return total
}

// Duration is a time.Duration that marshals as a Go duration string.
type Duration time.Duration

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes if present
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
