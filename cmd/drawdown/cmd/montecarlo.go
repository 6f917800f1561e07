package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/drawdown/internal/metrics"
	"github.com/rustyeddy/drawdown/journal"
	"github.com/rustyeddy/drawdown/montecarlo"
)

var montecarloCmd = &cobra.Command{
	Use:     "montecarlo",
	Aliases: []string{"mc"},
	Short:   "Run the savings plan from every start month",
	Long: `Montecarlo starts the plan on the first trading day of every month in the
configured range, runs each for a fixed number of trading days and reports
the distribution of terminal values.

Examples:
  drawdown montecarlo -p spx_d.csv --from 1970-01 --to 1990-12
  drawdown montecarlo -p spx_d.csv -o table.csv --stats stats.csv --metrics-addr :9102`,
	Args: cobra.NoArgs,
	RunE: runMonteCarlo,
}

var (
	mcFrom        string
	mcTo          string
	mcHorizon     int
	mcTrials      int
	mcWorkers     int
	mcOut         string
	mcStatsOut    string
	mcMetricsAddr string
	mcNoJournal   bool
)

func init() {
	rootCmd.AddCommand(montecarloCmd)

	f := montecarloCmd.Flags()
	f.BoolVar(&inputSignals, "use-input-signals", false, "use the signal column of the price file")
	f.StringVar(&mcFrom, "from", "", "first start month YYYY-MM")
	f.StringVar(&mcTo, "to", "", "last start month YYYY-MM")
	f.IntVar(&mcHorizon, "horizon", 0, "trading days per trial")
	f.IntVar(&mcTrials, "trials", 0, "trials per start date")
	f.IntVarP(&mcWorkers, "workers", "w", 0, "concurrent trials, 0 for one per CPU")
	f.StringVarP(&mcOut, "output", "o", "", "write the per-trial table CSV here")
	f.StringVar(&mcStatsOut, "stats", "", "write per-step mean and std dev CSV here")
	f.StringVar(&mcMetricsAddr, "metrics-addr", "", "serve Prometheus metrics here while running")
	f.BoolVar(&mcNoJournal, "no-journal", false, "do not record the run")
}

func runMonteCarlo(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	defer func() { m.RunFinished(string(journal.KindMonteCarlo), err) }()
	if mcMetricsAddr != "" {
		shutdown := serveMetrics(m, mcMetricsAddr)
		defer shutdown()
	}

	if mcFrom != "" {
		cfg.MonteCarlo.StartFrom = mcFrom
	}
	if mcTo != "" {
		cfg.MonteCarlo.StartTo = mcTo
	}
	if mcHorizon > 0 {
		cfg.MonteCarlo.HorizonDays = mcHorizon
	}
	if mcTrials > 0 {
		cfg.MonteCarlo.Trials = mcTrials
	}
	if mcWorkers > 0 {
		cfg.MonteCarlo.Workers = mcWorkers
	}
	if mcOut != "" || mcStatsOut != "" {
		cfg.MonteCarlo.KeepPaths = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	in, err := loadInput()
	if err != nil {
		return err
	}
	opts, err := cfg.MonteCarloOptions()
	if err != nil {
		return err
	}
	opts.Logger = logger
	opts.Observer = m

	h, err := montecarlo.New(opts)
	if err != nil {
		return err
	}
	res, err := h.Run(ctx, in.ds.Series, in.sigs)
	if err != nil {
		return fmt.Errorf("montecarlo: %w", err)
	}
	st := res.Stats()

	if mcOut != "" {
		if err := journal.WriteFile(mcOut, func(w io.Writer) error { return journal.WriteTable(w, res) }); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	}
	if mcStatsOut != "" {
		if err := journal.WriteFile(mcStatsOut, func(w io.Writer) error { return journal.WriteStats(w, st) }); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
	}

	rec := journal.MonteCarloRun(res, st)
	stamp(&rec, in.rule)
	if !mcNoJournal {
		j, err := openJournal()
		if err != nil {
			return err
		}
		if j != nil {
			defer j.Close()
			jctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			record(jctx, j, rec, func(j journal.Journal) error {
				if err := j.RecordTrials(jctx, rec.RunID, res.Trials); err != nil {
					return err
				}
				return j.RecordStats(jctx, rec.RunID, st)
			})
		}
	}

	t := st.Terminal
	fmt.Printf("Monte Carlo Complete! (%s)\n", rec.RunID)
	fmt.Printf("  Trials: %d  Skipped: %d  Horizon: %d days  Elapsed: %s\n",
		len(res.Trials), len(res.Skipped), res.Horizon, res.Elapsed.Round(time.Millisecond))
	fmt.Printf("  Terminal Mean: %.2f  Std Dev: %.2f\n", t.Mean, t.StdDev)
	fmt.Printf("  Min: %.2f  P5: %.2f  Median: %.2f  P95: %.2f  Max: %.2f\n", t.Min, t.P5, t.P50, t.P95, t.Max)
	if len(st.Steps) > 0 {
		fmt.Printf("  Mean Step Std Dev: %.2f\n", st.MeanStdDev)
	}
	return nil
}

// serveMetrics exposes m until the returned func is called.
func serveMetrics(m *metrics.Metrics, addr string) func() {
	srv := &http.Server{Addr: addr, Handler: metricsRouter(m), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func metricsRouter(m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	return router
}
