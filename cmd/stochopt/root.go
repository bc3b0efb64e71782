package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/stochopt/internal/config"
	"github.com/copyleftdev/stochopt/internal/logging"
)

var (
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stochopt",
	Short: "Derivative-free stochastic optimization",
	Long: `stochopt minimizes benchmark objectives with an adaptive pattern search
or a normalized random walk, and manages the runs stored by the server.

Defaults come from the same OPT_* environment variables the server reads.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := logLevel
		if level == "" {
			level = cfg.Logging.Level
		}
		logger, err = logging.NewLogger(&logging.Config{
			Level:  level,
			Format: logFormat,
			Output: "stderr",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error); empty uses LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (json, console)")
}

// storeDir returns dir, falling back to STORE_DIR.
func storeDir(dir string) string {
	if dir != "" {
		return dir
	}
	return cfg.Store.Dir
}
