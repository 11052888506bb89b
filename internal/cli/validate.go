package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/throttler/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config>",
	Short: "Validate a run configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: valid (work factor %v, %d stages, %s)\n",
			args[0], cfg.WorkFactor, len(cfg.Stages), describeBound(cfg))
		return nil
	},
}

// loadConfigFile loads, defaults and validates a run configuration file.
func loadConfigFile(path string) (*config.RunConfig, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func describeBound(cfg *config.RunConfig) string {
	switch {
	case cfg.TotalDuration() > 0 && cfg.Iterations > 0:
		return fmt.Sprintf("%s or %d iterations", cfg.TotalDuration(), cfg.Iterations)
	case cfg.Iterations > 0:
		return fmt.Sprintf("%d iterations", cfg.Iterations)
	}
	return cfg.TotalDuration().String()
}
