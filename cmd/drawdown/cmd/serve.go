package cmd

import (
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/drawdown/internal/metrics"
	"github.com/rustyeddy/drawdown/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run journal over HTTP",
	Long: `Serve exposes the SQLite journal as a read-only JSON API with Prometheus
metrics.

Routes:
  GET /health
  GET /metrics
  GET /api/v1/runs
  GET /api/v1/runs/:id
  GET /api/v1/runs/:id/snapshots
  GET /api/v1/runs/:id/trials
  GET /api/v1/runs/:id/stats
  GET /api/v1/runs/:id/report

Example:
  drawdown serve --addr :8080 -d drawdown.db`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr    string
	serveRelease bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	serveCmd.Flags().StringVarP(&runsDBPath, "db", "d", "", "path to SQLite journal DB, overrides journal.db_path")
	serveCmd.Flags().BoolVar(&serveRelease, "release", true, "run gin in release mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	j, err := openRuns()
	if err != nil {
		return err
	}
	defer j.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(j, server.Options{
		Addr:           addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Release:        serveRelease,
		Logger:         logger,
		Metrics:        metrics.New(prometheus.DefaultRegisterer),
	})
	return srv.Run(ctx)
}
