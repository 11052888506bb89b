// Package output renders run results: a console summary for humans, a JSON
// report for machines, and a comparison against a saved baseline report.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/wesleyorama2/throttler/internal/config"
	"github.com/wesleyorama2/throttler/internal/engine"
)

const (
	boxHorizontal = "━"
	boxWidth      = 56
)

// ConsoleOutput prints run headers and summaries.
type ConsoleOutput struct {
	writer io.Writer
	colors *ColorScheme
	quiet  bool

	mu sync.Mutex
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	Writer      io.Writer
	Quiet       bool
	ForceColors bool
	NoColors    bool
}

// NewConsoleOutput creates a new console output handler.
func NewConsoleOutput(cfg ConsoleOutputConfig) *ConsoleOutput {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	colors := NoColorScheme()
	if !cfg.NoColors && (cfg.ForceColors || (isTerminal(cfg.Writer) && supportsColors())) {
		colors = DefaultColorScheme().forceColor()
	}

	return &ConsoleOutput{
		writer: cfg.Writer,
		colors: colors,
		quiet:  cfg.Quiet,
	}
}

// PrintHeader prints the run header.
func (c *ConsoleOutput) PrintHeader(cfg *config.RunConfig) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.colors.Border.Sprint(strings.Repeat(boxHorizontal, boxWidth))
	c.writeln(line)
	c.writeln(c.colors.Title.Sprintf("%s - Running", cfg.Name))
	c.writeln(line)

	factor := formatFactor(cfg.WorkFactor)
	if len(cfg.Stages) > 0 {
		// Stages take over from the first unit of work.
		factor = fmt.Sprintf("staged, starting at %s", formatFactor(cfg.Stages[0].WorkFactor))
	}
	c.writeln(fmt.Sprintf("Work factor:   %s", c.colors.Value.Sprint(factor)))
	c.writeln(fmt.Sprintf("Workload:      %s", c.colors.Value.Sprintf("%s (%s)", cfg.Workload.Type, cfg.Workload.Duration)))
	if d := cfg.TotalDuration(); d > 0 {
		c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(d))))
	}
	if cfg.Iterations > 0 {
		c.writeln(fmt.Sprintf("Iterations:    %s", c.colors.Value.Sprint(formatNumber(cfg.Iterations))))
	}
	if len(cfg.Stages) > 0 {
		c.writeln(fmt.Sprintf("Stages:        %s", c.colors.Value.Sprint(len(cfg.Stages))))
	}
	c.writeln("")
}

// PrintSummary prints the run summary.
func (c *ConsoleOutput) PrintSummary(result *engine.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiet {
		if result.Passed {
			c.writeln(c.colors.Success.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.Error.Sprint("FAILED"))
		}
		return
	}

	line := c.colors.Border.Sprint(strings.Repeat(boxHorizontal, boxWidth))
	status := c.colors.Success.Sprint("Completed ✓")
	switch {
	case !result.Passed:
		status = c.colors.Error.Sprint("Failed ✗")
	case result.Interrupted:
		status = c.colors.Warn.Sprint("Interrupted")
	}

	c.writeln("")
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Name), status))
	c.writeln(line)
	c.writeln("")

	c.writeln(fmt.Sprintf("Run ID:        %s", result.ID))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(result.Duration))))

	if m := result.Metrics; m != nil {
		c.writeln(fmt.Sprintf("Executions:    %s", c.colors.Value.Sprint(formatNumber(m.Executions))))
		c.writeln(fmt.Sprintf("Failures:      %s", c.rateColor(m.FailureRate, 0.01, 0.05).Sprint(formatNumber(m.Failures))))
		c.writeln(fmt.Sprintf("Throughput:    %s", c.colors.Value.Sprintf("%.1f/s", m.Throughput)))
		c.writeln("")

		c.writeln(c.colors.Label.Sprint("Work Factor:"))
		c.writeln(fmt.Sprintf("  Target:    %s", formatFactor(result.TargetWorkFactor)))
		c.writeln(fmt.Sprintf("  Achieved:  %s", c.rateColor(result.RatioError, 0.01, 0.05).Sprint(formatFactor(result.AchievedWorkFactor))))
		c.writeln(fmt.Sprintf("  Work:      %s", formatDurationShort(m.WorkTime)))
		c.writeln(fmt.Sprintf("  Idle:      %s (requested %s)", formatDurationShort(m.IdleTime), formatDurationShort(m.RequestedIdleTime)))
		c.writeln(fmt.Sprintf("  Pending:   %s", formatDurationShort(m.PendingDelay)))
		c.writeln("")

		c.writeln(c.colors.Label.Sprint("Work Duration:"))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(m.Work.P50)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(m.Work.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(m.Work.Max)))
		c.writeln("")
	}

	if len(result.Stages) > 1 {
		c.writeln(c.colors.Label.Sprint("Stages:"))
		for _, s := range result.Stages {
			c.writeln(fmt.Sprintf("  %-12s target %-7s achieved %s  (%s units, %s)",
				s.Name,
				formatFactor(s.TargetWorkFactor),
				c.rateColor(s.RatioError, 0.01, 0.05).Sprint(formatFactor(s.AchievedWorkFactor)),
				formatNumber(s.Executions),
				formatDuration(s.Duration)))
		}
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colors.Label.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			mark := c.colors.Success.Sprint("✓")
			if !t.Passed {
				mark = c.colors.Error.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("  %s %s", mark, t.Message))
		}
		c.writeln("")
	}
}

// PrintComparison prints a baseline comparison.
func (c *ConsoleOutput) PrintComparison(comparisons []Comparison) {
	if c.quiet || len(comparisons) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(c.colors.Label.Sprint("Baseline:"))
	for _, cmp := range comparisons {
		mark := c.colors.Success.Sprint("✓")
		if cmp.Regressed {
			mark = c.colors.Error.Sprint("✗")
		}
		c.writeln(fmt.Sprintf("  %s %-20s %.4f -> %.4f (%+.4f)", mark, cmp.Metric, cmp.Baseline, cmp.Current, cmp.Delta))
	}
	c.writeln("")
}

// rateColor picks a color for a "lower is better" value.
func (c *ConsoleOutput) rateColor(v, warn, bad float64) *color.Color {
	switch {
	case v >= bad:
		return c.colors.Error
	case v >= warn:
		return c.colors.Warn
	}
	return c.colors.Success
}

func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}
