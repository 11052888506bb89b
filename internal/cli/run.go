package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wesleyorama2/throttler/internal/config"
	"github.com/wesleyorama2/throttler/internal/engine"
	"github.com/wesleyorama2/throttler/internal/metrics"
	"github.com/wesleyorama2/throttler/internal/observability"
	"github.com/wesleyorama2/throttler/internal/output"
)

const (
	exitFailed    = 1
	exitRegressed = 2
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a throttled workload",
	Long: `Run a synthetic workload through the throttling executor and report how
closely the achieved work factor tracks the target.

Config file mode:
  throttler run --config run.yaml

Quick CLI mode:
  throttler run --work-factor 0.25 --duration 30s --work-duration 200us

Live retuning:
  throttler run --stages "10s:1.0,10s:0.5,10s:0.1" --metrics-addr :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runThrottled(ctx, cmd.Flags(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// runThrottled executes one run as configured by flags.
func runThrottled(ctx context.Context, flags *pflag.FlagSet, stdout, stderr io.Writer) error {
	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	jsonOutput, _ := flags.GetBool("json")
	outputPath, _ := flags.GetString("output")
	baselinePath, _ := flags.GetString("baseline")
	tolerance, _ := flags.GetFloat64("tolerance")
	metricsAddr, _ := flags.GetString("metrics-addr")
	quiet, _ := flags.GetBool("quiet")
	noColor, _ := flags.GetBool("no-color")

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  logLevel,
		Format: logFormat,
		Writer: stderr,
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadRunConfig(flags)
	if err != nil {
		return err
	}

	m := metrics.NewEngine()
	if metricsAddr != "" {
		shutdown, err := serveMetrics(metricsAddr, m, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	eng, err := engine.NewEngine(cfg, engine.WithLogger(logger), engine.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		Writer:   stdout,
		Quiet:    quiet,
		NoColors: noColor,
	})
	if !jsonOutput {
		console.PrintHeader(cfg)
	}

	result, err := eng.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if jsonOutput {
		if err := output.WriteReport(stdout, result); err != nil {
			return err
		}
	} else {
		console.PrintSummary(result)
	}

	if outputPath != "" {
		if err := output.SaveReport(outputPath, result); err != nil {
			return err
		}
		logger.Info("report saved", zap.String("path", outputPath))
	}

	if baselinePath != "" {
		regressed, err := compareWithBaseline(baselinePath, tolerance, result, console, jsonOutput)
		if err != nil {
			return err
		}
		if regressed {
			return &ExitError{Code: exitRegressed, Err: errors.New("run regressed against baseline")}
		}
	}

	if !result.Passed {
		return &ExitError{Code: exitFailed, Err: errors.New("thresholds failed")}
	}
	return nil
}

// loadRunConfig builds the run configuration from --config and/or flags.
// Flags explicitly set on the command line override the file.
func loadRunConfig(flags *pflag.FlagSet) (*config.RunConfig, error) {
	cfg := &config.RunConfig{}

	configFile, _ := flags.GetString("config")
	if configFile != "" {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := buildConfigFromFlags(flags, cfg, configFile == ""); err != nil {
		return nil, err
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildConfigFromFlags copies flag values into cfg. With all set, every flag
// (including defaults) is applied; otherwise only flags the user changed.
func buildConfigFromFlags(flags *pflag.FlagSet, cfg *config.RunConfig, all bool) error {
	use := func(name string) bool {
		return all || flags.Changed(name)
	}

	if use("name") {
		cfg.Name, _ = flags.GetString("name")
	}
	if use("work-factor") {
		cfg.WorkFactor, _ = flags.GetFloat64("work-factor")
	}
	// The default duration does not cap runs bounded by stages or iterations.
	if use("duration") && (flags.Changed("duration") || !(flags.Changed("stages") || flags.Changed("iterations"))) {
		d, err := durationFlag(flags, "duration")
		if err != nil {
			return err
		}
		cfg.Duration = config.Duration(d)
	}
	if use("iterations") {
		cfg.Iterations, _ = flags.GetInt64("iterations")
	}
	if use("workload") {
		w, _ := flags.GetString("workload")
		cfg.Workload.Type = config.WorkloadType(w)
	}
	if use("work-duration") {
		d, err := durationFlag(flags, "work-duration")
		if err != nil {
			return err
		}
		cfg.Workload.Duration = config.Duration(d)
	}
	if use("fail-every") {
		cfg.Workload.FailEvery, _ = flags.GetInt("fail-every")
	}
	if use("stages") {
		s, _ := flags.GetString("stages")
		stages, err := config.ParseStages(s)
		if err != nil {
			return fmt.Errorf("invalid --stages: %w", err)
		}
		cfg.Stages = stages
	}
	if use("max-ratio-error") {
		maxErr, _ := flags.GetFloat64("max-ratio-error")
		if maxErr > 0 {
			if cfg.Thresholds == nil {
				cfg.Thresholds = &config.ThresholdsConfig{}
			}
			cfg.Thresholds.MaxRatioError = maxErr
		}
	}

	return nil
}

func durationFlag(flags *pflag.FlagSet, name string) (time.Duration, error) {
	s, _ := flags.GetString(name)
	if s == "" {
		return 0, nil
	}
	d, err := config.ParseDurationString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

// serveMetrics exposes Prometheus metrics on addr until the returned
// shutdown function is called.
func serveMetrics(addr string, m *metrics.Engine, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(metrics.NewRegistry(m, metrics.DefaultNamespace)))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
	}, nil
}

// compareWithBaseline compares result with the saved report at path.
func compareWithBaseline(path string, tolerance float64, result *engine.Result, console *output.ConsoleOutput, jsonOutput bool) (bool, error) {
	baseline, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read baseline: %w", err)
	}

	current, err := output.MarshalReport(result)
	if err != nil {
		return false, err
	}

	comparisons, err := output.CompareBaseline(current, baseline, tolerance)
	if err != nil {
		return false, err
	}
	if !jsonOutput {
		console.PrintComparison(comparisons)
	}
	return output.Regressed(comparisons), nil
}

// addRunFlags defines the run flags on fs.
func addRunFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Run configuration file (YAML or JSON)")
	fs.String("name", "", "Run name")
	fs.Float64P("work-factor", "f", 1.0, "Fraction of time spent working (0.001 to 1.0)")
	fs.StringP("duration", "d", "10s", "Run duration (e.g., 30s, 2m)")
	fs.Int64P("iterations", "n", 0, "Maximum number of work units (0 = unlimited)")
	fs.String("workload", string(config.WorkloadSpin), "Workload type: spin, sleep or fail")
	fs.String("work-duration", config.DefaultWorkloadDuration.String(), "Duration of one unit of work")
	fs.Int("fail-every", 0, "With --workload fail, every Nth unit fails")
	fs.String("stages", "", "Work factor stages (e.g., \"10s:1.0,10s:0.5\")")
	fs.Float64("max-ratio-error", 0, "Fail the run if |achieved - target| exceeds this")

	fs.Bool("json", false, "Print the report as JSON")
	fs.StringP("output", "o", "", "Save the JSON report to a file")
	fs.String("baseline", "", "Compare against a saved JSON report")
	fs.Float64("tolerance", 0.05, "Allowed regression against the baseline")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g., :9090)")

	fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	fs.String("log-format", "console", "Log format: console or json")
	fs.BoolP("quiet", "q", false, "Only print PASSED or FAILED")
	fs.Bool("no-color", false, "Disable colored output")
}

func init() {
	addRunFlags(runCmd.Flags())
}
