package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/drawdown/journal"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Generate the daily signal file from a price history",
	Long: `Signals computes the SMA, all-time high, drawdown and countdown of every
trading day and writes one CSV row per day.

Example:
  drawdown signals -p spx_d.csv -o spx_signals.csv`,
	Args: cobra.NoArgs,
	RunE: runSignals,
}

var signalsOut string

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.Flags().StringVarP(&signalsOut, "output", "o", "-", "output CSV path, - for stdout")
}

func runSignals(cmd *cobra.Command, args []string) error {
	inputSignals = false
	in, err := loadInput()
	if err != nil {
		return err
	}

	write := func(w io.Writer) error { return journal.WriteSignals(w, in.points) }
	if signalsOut == "-" {
		return write(os.Stdout)
	}
	if err := journal.WriteFile(signalsOut, write); err != nil {
		return fmt.Errorf("write signals: %w", err)
	}

	counts := map[string]int{}
	for _, s := range in.sigs {
		counts[s.String()]++
	}
	fmt.Printf("✓ Wrote %d days to %s\n", len(in.points), signalsOut)
	fmt.Printf("  BUY %d  BUY_DRAWDOWN %d  SELL %d  HOLD %d\n",
		counts["BUY"], counts["BUY_DRAWDOWN"], counts["SELL"], counts["HOLD"])
	return nil
}
