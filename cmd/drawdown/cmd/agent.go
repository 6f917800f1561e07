package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/drawdown/agent"
	"github.com/rustyeddy/drawdown/broker"
	"github.com/rustyeddy/drawdown/market"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Act on the latest signal against the paper account",
	Long: `Agent reads the last close and signal of the price file and trades the
paper account: a buy signal spends the cash on whole shares, a sell signal
closes the position. The account is saved between invocations.

Examples:
  drawdown agent -p spx_d.csv
  drawdown agent -p spx_signals.csv --use-input-signals --state paper.yaml`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

var (
	agentState  string
	agentDryRun bool
)

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().BoolVar(&inputSignals, "use-input-signals", false, "use the signal column of the price file")
	agentCmd.Flags().StringVar(&agentState, "state", "", "paper account file, overrides agent.state_path")
	agentCmd.Flags().BoolVar(&agentDryRun, "dry-run", false, "do not save the paper account")
}

func runAgent(cmd *cobra.Command, args []string) error {
	ac := cfg.Agent
	if agentState != "" {
		ac.StatePath = agentState
	}

	in, err := loadInput()
	if err != nil {
		return err
	}
	paper, err := broker.LoadPaper(ac.StatePath, ac.AccountID, ac.Currency, ac.InitialCash)
	if err != nil {
		return err
	}
	if n := len(in.ds.Series); n > 0 {
		paper.SetPrice(ac.Instrument, in.ds.Series[n-1].Close)
	}

	d, fill, err := agent.New(paper, ac.Instrument, logger).Run(cmd.Context(), in.ds.Series, in.sigs)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	fmt.Printf("Signal %s on %s at %.2f\n", d.Signal, d.Date.Format(market.DateLayout), d.Price)
	if fill == nil {
		fmt.Printf("  No action: %s\n", d.Reason)
	} else {
		fmt.Printf("  %s %.0f %s @ %.2f (order %s)\n", fill.Side, fill.Quantity, fill.Instrument, fill.Price, fill.OrderID)
	}

	acct, err := paper.GetAccount(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("  Account %s: cash %.2f %s, %s %.0f\n", acct.ID, acct.Cash, acct.Currency, ac.Instrument, acct.Position(ac.Instrument))

	if agentDryRun || fill == nil {
		return nil
	}
	if err := paper.Save(ac.StatePath); err != nil {
		return fmt.Errorf("save paper account: %w", err)
	}
	fmt.Printf("✓ Saved %s\n", ac.StatePath)
	return nil
}
