package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/drawdown/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, show or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  show     - Print the effective configuration
  validate - Validate an existing configuration file

Examples:
  drawdown config init -o drawdown.yaml
  drawdown config show -c drawdown.yaml
  drawdown config validate -f drawdown.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after env and flag overrides",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "drawdown.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.Default().SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  drawdown simulate -c %s\n", configInitOutput)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := cfg.Marshal("effective.yaml")
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Prices: %s\n", c.Data.PricesFile)
	fmt.Printf("  Signal: %s (SMA %d, %.0f%%/%dd, %.0f%%/%dd)\n",
		c.Signal.Rule, c.Signal.SMAWindow,
		c.Signal.Deep.ThresholdPct, c.Signal.Deep.Days,
		c.Signal.Shallow.ThresholdPct, c.Signal.Shallow.Days)
	fmt.Printf("  Portfolio: %.2f/day, TER %.2f%%, fee %.2f, tax %.2f%%\n",
		c.Portfolio.Contribution, c.Portfolio.TERAnnual*100, c.Portfolio.Fee, c.Portfolio.TaxRate*100)
	fmt.Printf("  Monte Carlo: %d days from %s to %s\n",
		c.MonteCarlo.HorizonDays, c.MonteCarlo.StartFrom, c.MonteCarlo.StartTo)
	return nil
}
