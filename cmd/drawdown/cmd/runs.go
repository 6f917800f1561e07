package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/drawdown/journal"
	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/pkg/id"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query journaled runs",
	Long: `Query runs recorded in the SQLite journal.

Subcommands:
  list   - List the most recent runs
  show   - Show one run and its configuration
  report - Write an org-mode report of one run

Examples:
  drawdown runs list -n 10
  drawdown runs show 01HZX...
  drawdown runs report 01HZX... -o run.org`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsReportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Write an org-mode report of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsReport,
}

var (
	runsDBPath    string
	runsLimit     int
	runsReportOut string
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsReportCmd)

	runsCmd.PersistentFlags().StringVarP(&runsDBPath, "db", "d", "", "path to SQLite journal DB, overrides journal.db_path")
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs, 0 for all")
	runsReportCmd.Flags().StringVarP(&runsReportOut, "output", "o", "", "write the report here instead of stdout")
}

func openRuns() (*journal.SQLite, error) {
	path := cfg.Journal.DBPath
	if runsDBPath != "" {
		path = runsDBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal database configured")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	j, err := openRuns()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-26s  %-10s  %-16s  %-23s  %6s  %14s\n", "RUN ID", "KIND", "CREATED", "PERIOD", "TRIALS", "TERMINAL MEAN")
	for _, r := range runs {
		fmt.Printf("%-26s  %-10s  %-16s  %-23s  %6d  %14.2f\n",
			r.RunID, r.Kind, r.Created.Local().Format("2006-01-02 15:04"),
			r.Start.Format(market.DateLayout)+".."+r.End.Format(market.DateLayout),
			r.Trials, r.Terminal.Mean)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	j, err := openRuns()
	if err != nil {
		return err
	}
	defer j.Close()

	r, err := j.GetRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	fmt.Printf("Run %s (%s)\n", r.RunID, r.Kind)
	fmt.Printf("  Created: %s\n", r.Created.Local().Format("2006-01-02 15:04:05"))
	if minted, err := id.Time(r.RunID); err == nil {
		fmt.Printf("  ID Time: %s\n", minted.Local().Format("2006-01-02 15:04:05.000"))
	}
	fmt.Printf("  Dataset: %s  Rule: %s\n", r.Dataset, r.Rule)
	fmt.Printf("  Period: %s .. %s  Days: %d\n", r.Start.Format(market.DateLayout), r.End.Format(market.DateLayout), r.Days)
	fmt.Printf("  Trials: %d  Skipped: %d\n", r.Trials, r.Skipped)
	t := r.Terminal
	fmt.Printf("  Terminal Mean: %.2f  Std Dev: %.2f  Min: %.2f  Median: %.2f  Max: %.2f\n", t.Mean, t.StdDev, t.Min, t.P50, t.Max)
	fmt.Printf("  Tax Paid: %.2f  Fees Paid: %.2f  Transfers: %d  Liquidations: %d\n", r.TaxPaid, r.FeesPaid, r.Transfers, r.Liquidations)
	for _, n := range r.Notes {
		fmt.Printf("  - %s\n", n)
	}
	if len(r.Config) > 0 {
		fmt.Println("\nConfiguration:")
		for _, line := range strings.Split(strings.TrimRight(string(r.Config), "\n"), "\n") {
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}

func runRunsReport(cmd *cobra.Command, args []string) error {
	j, err := openRuns()
	if err != nil {
		return err
	}
	defer j.Close()

	org, err := j.ExportRunOrg(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if runsReportOut == "" {
		fmt.Print(org)
		return nil
	}
	if err := os.WriteFile(runsReportOut, []byte(org), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("✓ Wrote %s\n", runsReportOut)
	return nil
}
