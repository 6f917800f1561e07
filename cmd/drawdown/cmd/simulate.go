package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/drawdown/journal"
	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/sim"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate the savings plan over the whole price history",
	Long: `Simulate replays the price history once, moving the account between cash
and the fund on the daily signal, and prints the terminal value.

Examples:
  drawdown simulate -p spx_d.csv
  drawdown simulate -p spx_signals.csv --use-input-signals -o trajectory.csv`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

var (
	simOut       string
	simNoJournal bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().BoolVar(&inputSignals, "use-input-signals", false, "use the signal column of the price file")
	simulateCmd.Flags().StringVarP(&simOut, "output", "o", "", "write the daily trajectory CSV here")
	simulateCmd.Flags().BoolVar(&simNoJournal, "no-journal", false, "do not record the run")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	in, err := loadInput()
	if err != nil {
		return err
	}
	engine, err := sim.NewEngine(cfg.PortfolioParams(), logger)
	if err != nil {
		return err
	}
	run, err := engine.Run(in.ds.Series, in.sigs)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	if simOut != "" {
		if err := journal.WriteFile(simOut, func(w io.Writer) error {
			return journal.WriteTrajectory(w, run.Snapshots)
		}); err != nil {
			return fmt.Errorf("write trajectory: %w", err)
		}
	}

	rec := journal.SimulationRun(run)
	stamp(&rec, in.rule)
	if !simNoJournal {
		j, err := openJournal()
		if err != nil {
			return err
		}
		if j != nil {
			defer j.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			record(ctx, j, rec, func(j journal.Journal) error {
				return j.RecordSnapshots(ctx, rec.RunID, run.Snapshots)
			})
		}
	}

	f := run.Final
	fmt.Printf("Simulation Complete! (%s)\n", rec.RunID)
	fmt.Printf("  Period: %s .. %s (%d days)\n",
		run.Start.Format(market.DateLayout), run.End.Format(market.DateLayout), len(run.Snapshots))
	fmt.Printf("  Terminal: %.2f\n", run.Terminal())
	fmt.Printf("  Invested: %.2f  Cash: %.2f  Mode: %s\n", f.Invested, f.Cash, f.Mode)
	fmt.Printf("  Tax Paid: %.2f  Fees Paid: %.2f\n", f.TaxPaid, f.FeesPaid)
	fmt.Printf("  Transfers: %d  Liquidations: %d\n", f.Transfers, f.Liquidations)
	if simOut != "" {
		fmt.Printf("  Trajectory: %s\n", simOut)
	}
	return nil
}
