package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/drawdown/broker"
	"github.com/rustyeddy/drawdown/internal/metrics"
	"github.com/rustyeddy/drawdown/journal"
)

func writeFixture(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()

	var b strings.Builder
	b.WriteString("Date,Close\n")
	start := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%s,%.2f\n", start.AddDate(0, 0, i).Format("2006-01-02"), 100+float64(i))
	}
	prices := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(prices, []byte(b.String()), 0644))

	yaml := fmt.Sprintf(`data:
  prices_file: %s
signal:
  rule: buy-hold
  sma_window: 5
montecarlo:
  horizon_days: 11
  trials: 2
  start_from: "2020-01"
  start_to: "2020-02"
  workers: 2
journal:
  db_path: %s
  out_dir: %s
agent:
  instrument: SPX
  state_path: %s
log:
  level: error
`, prices, filepath.Join(dir, "runs.db"), filepath.Join(dir, "out"), filepath.Join(dir, "paper.yaml"))
	cfgPath = filepath.Join(dir, "drawdown.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))
	return dir, cfgPath
}

// execute runs the root command. Flag variables are package globals, so
// they are reset before every invocation.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	cfgFile, pricesArg, logLevel = "", "", ""
	inputSignals = false
	signalsOut, simOut = "-", ""
	mcFrom, mcTo, mcOut, mcStatsOut, mcMetricsAddr = "", "", "", "", ""
	mcHorizon, mcTrials, mcWorkers = 0, 0, 0
	runsDBPath, runsReportOut, agentState = "", "", ""
	configInitOutput, configValidatePath = "drawdown.yaml", ""
	rootCmd.SetArgs(append(args, "--env", filepath.Join(t.TempDir(), "missing.env")))
	return rootCmd.Execute()
}

func TestCommandsEndToEnd(t *testing.T) {
	dir, cfgPath := writeFixture(t)

	signalsPath := filepath.Join(dir, "signals.csv")
	require.NoError(t, execute(t, "signals", "-c", cfgPath, "-o", signalsPath))
	data, err := os.ReadFile(signalsPath)
	require.NoError(t, err)
	assert.Equal(t, 41, strings.Count(string(data), "\n"))

	trajectory := filepath.Join(dir, "trajectory.csv")
	require.NoError(t, execute(t, "simulate", "-c", cfgPath, "-o", trajectory))
	assert.FileExists(t, trajectory)

	table := filepath.Join(dir, "table.csv")
	require.NoError(t, execute(t, "montecarlo", "-c", cfgPath, "-o", table))
	assert.FileExists(t, table)

	j, err := journal.NewSQLite(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	runs, err := j.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.Len(t, runs, 2)
	assert.Equal(t, journal.KindMonteCarlo, runs[0].Kind)
	// two start months, Feb is too short for eleven days, two trials each
	assert.Equal(t, 2, runs[0].Trials)
	assert.Equal(t, 1, runs[0].Skipped)
	assert.Equal(t, "buy-hold", runs[1].Rule)
	assert.Equal(t, "prices.csv", runs[1].Dataset)

	assert.FileExists(t, filepath.Join(dir, "out", runs[0].RunID+"-trials.csv"))

	require.NoError(t, execute(t, "runs", "show", runs[0].RunID, "-c", cfgPath))
	assert.Error(t, execute(t, "runs", "show", "NOPE", "-c", cfgPath))

	report := filepath.Join(dir, "run.org")
	require.NoError(t, execute(t, "runs", "report", runs[1].RunID, "-c", cfgPath, "-o", report))
	org, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(org), "* RUN: simulate buy-hold"))

	require.NoError(t, execute(t, "agent", "-c", cfgPath))
	paper, err := broker.LoadPaper(filepath.Join(dir, "paper.yaml"), "", "", 0)
	require.NoError(t, err)
	acct, err := paper.GetAccount(context.Background())
	require.NoError(t, err)
	// 10000 at the last close of 139
	assert.Equal(t, 71.0, acct.Position("SPX"))
	assert.InDelta(t, 10000-71*139.0, acct.Cash, 1e-9)
}

func TestConfigInit(t *testing.T) {
	out := filepath.Join(t.TempDir(), "drawdown.yaml")
	require.NoError(t, execute(t, "config", "init", "-o", out))
	assert.FileExists(t, out)
	require.NoError(t, execute(t, "config", "validate", "-f", out))
}

func TestInvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0644))
	assert.Error(t, execute(t, "simulate", "-c", path))
}

func TestMetricsRouter(t *testing.T) {
	m := metrics.New(nil)
	m.TrialDone(time.Millisecond, 100)

	rec := httptest.NewRecorder()
	metricsRouter(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "drawdown_montecarlo_trials_completed_total 1")

	rec = httptest.NewRecorder()
	metricsRouter(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
