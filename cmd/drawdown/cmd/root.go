package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/drawdown/config"
	"github.com/rustyeddy/drawdown/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "drawdown",
	Short: "Drawdown-timed savings plan simulator",
	Long: `Drawdown simulates a daily savings plan that moves between cash and an
index fund on an all-time-high drawdown signal with a moving average fallback.

It provides tools for:
  - Generating the daily signal file from a price history
  - Simulating one savings plan with fees, fund costs and year-end tax
  - Running the plan from every start month (Monte Carlo harness)
  - Journaling runs to SQLite and CSV, and serving them over HTTP
  - Acting on the latest signal against a paper account`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile   string
	envFile   string
	logLevel  string
	pricesArg string

	cfg    *config.Config
	logger *zap.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON, defaults built in)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with DRAWDOWN_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&pricesArg, "prices", "p", "", "price CSV, overrides data.prices_file")
}

// setup resolves the configuration in order: defaults, file, .env and
// environment, flags.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if pricesArg != "" {
		cfg.Data.PricesFile = pricesArg
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	return nil
}
