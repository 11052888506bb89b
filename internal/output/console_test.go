package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/throttler/internal/config"
	"github.com/wesleyorama2/throttler/internal/engine"
	"github.com/wesleyorama2/throttler/internal/metrics"
)

func sampleResult(passed bool) *engine.Result {
	return &engine.Result{
		ID:                 "run-1",
		Name:               "backoff",
		Duration:           2 * time.Second,
		TargetWorkFactor:   0.5,
		AchievedWorkFactor: 0.498,
		RatioError:         0.002,
		Passed:             passed,
		Metrics: &metrics.Snapshot{
			Executions: 12345,
			Failures:   0,
			Throughput: 6172.5,
			WorkTime:   time.Second,
			IdleTime:   time.Second,
		},
		Stages: []engine.StageResult{
			{Name: "full", TargetWorkFactor: 1.0, AchievedWorkFactor: 1.0, Executions: 10000, Duration: time.Second},
			{Name: "half", TargetWorkFactor: 0.5, AchievedWorkFactor: 0.496, RatioError: 0.004, Executions: 2345, Duration: time.Second},
		},
		Thresholds: []engine.ThresholdResult{
			{Name: "ratio_error", Passed: passed, Message: "ratio_error 0.0020 <= 0.0100"},
		},
	}
}

func TestConsoleOutput_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, NoColors: true})

	c.PrintSummary(sampleResult(true))
	out := buf.String()

	for _, want := range []string{
		"backoff - Completed ✓",
		"Run ID:        run-1",
		"Executions:    12,345",
		"Target:    50.0%",
		"Achieved:  49.8%",
		"half",
		"✓ ratio_error 0.0020 <= 0.0100",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("summary contains ANSI codes with colors disabled")
	}
}

func TestConsoleOutput_PrintSummaryFailed(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, NoColors: true})

	c.PrintSummary(sampleResult(false))
	if !strings.Contains(buf.String(), "backoff - Failed ✗") {
		t.Errorf("expected failed status, got:\n%s", buf.String())
	}
}

func TestConsoleOutput_Quiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, Quiet: true, NoColors: true})

	c.PrintHeader(&config.RunConfig{Name: "quiet"})
	c.PrintSummary(sampleResult(true))

	if got := strings.TrimSpace(buf.String()); got != "PASSED" {
		t.Errorf("quiet output = %q, want PASSED", got)
	}
}

func TestConsoleOutput_ForceColors(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, ForceColors: true})

	c.PrintSummary(sampleResult(true))
	if !strings.Contains(buf.String(), "\033[") {
		t.Error("expected ANSI codes with forced colors")
	}
}

func TestConsoleOutput_PrintHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, NoColors: true})

	cfg := &config.RunConfig{
		Name:       "header",
		WorkFactor: 0.25,
		Iterations: 5000,
		Workload:   config.WorkloadConfig{Type: config.WorkloadSpin, Duration: config.Duration(100 * time.Microsecond)},
	}
	c.PrintHeader(cfg)
	out := buf.String()

	for _, want := range []string{"header - Running", "Work factor:   25.0%", "spin (100µs)", "Iterations:    5,000"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleOutput_PrintHeaderStaged(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, NoColors: true})

	cfg := &config.RunConfig{
		Name:       "staged",
		WorkFactor: 1.0,
		Workload:   config.WorkloadConfig{Type: config.WorkloadSpin, Duration: config.Duration(100 * time.Microsecond)},
		Stages: []config.StageConfig{
			{Duration: config.Duration(time.Second), WorkFactor: 0.2},
			{Duration: config.Duration(time.Second), WorkFactor: 0.8},
		},
	}
	c.PrintHeader(cfg)
	out := buf.String()

	if !strings.Contains(out, "Work factor:   staged, starting at 20.0%") {
		t.Errorf("header should show the first stage factor:\n%s", out)
	}
	if strings.Contains(out, "100.0%") {
		t.Errorf("header shows the unused base factor:\n%s", out)
	}
	if !strings.Contains(out, "Stages:        2") {
		t.Errorf("header missing stage count:\n%s", out)
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}

func TestSupportsColors(t *testing.T) {
	t.Setenv("FORCE_COLOR", "")
	t.Setenv("NO_COLOR", "1")
	if supportsColors() {
		t.Error("NO_COLOR must disable colors")
	}

	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "dumb")
	if supportsColors() {
		t.Error("dumb terminal must disable colors")
	}

	t.Setenv("TERM", "xterm-256color")
	if !supportsColors() {
		t.Error("xterm should support colors")
	}
}
