package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/montecarlo"
	"github.com/rustyeddy/drawdown/signal"
	"github.com/rustyeddy/drawdown/sim"
)

// Column headers.
var (
	SignalsHeader = []string{
		"Date", "Close", "SMA", "AllTimeHigh", "DrawdownPct", "DrawdownRatio", "Countdown", "Signal",
	}
	TrajectoryHeader = []string{
		"Date", "Close", "Signal", "Mode", "Invested", "Cash", "Total",
		"CostBasis", "RealizedGains", "TaxPaid", "FeesPaid",
	}
	StatsHeader = []string{"step", "mean", "stddev"}
)

// WriteSignals writes one row per generated day. SMA is empty until the
// window is ready.
func WriteSignals(w io.Writer, pts []signal.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SignalsHeader); err != nil {
		return err
	}
	for _, p := range pts {
		sma := ""
		if p.SMAReady {
			sma = fixed(p.SMA, 4)
		}
		if err := cw.Write([]string{
			p.Date.Format(market.DateLayout),
			price(p.Close),
			sma,
			price(p.AllTimeHigh),
			fixed(p.DrawdownPct, 4),
			fixed(p.DrawdownRatio, 6),
			strconv.Itoa(p.Countdown),
			p.Signal.String(),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrajectory writes one row per simulated day.
func WriteTrajectory(w io.Writer, snaps []sim.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TrajectoryHeader); err != nil {
		return err
	}
	for _, s := range snaps {
		if err := cw.Write([]string{
			s.Date.Format(market.DateLayout),
			price(s.Close),
			s.Signal.String(),
			string(s.Mode),
			money(s.Invested),
			money(s.Cash),
			money(s.Total),
			money(s.CostBasis),
			money(s.RealizedGains),
			money(s.TaxPaid),
			money(s.FeesPaid),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes the trial table. Each row is a trial; columns are the
// time steps when every trial kept its path, or a single terminal column.
func WriteTable(w io.Writer, res *montecarlo.Result) error {
	cw := csv.NewWriter(w)

	paths := res.HasPaths()
	header := []string{"trial"}
	if paths {
		for step := 0; step < res.Horizon; step++ {
			header = append(header, strconv.Itoa(step))
		}
	} else {
		header = append(header, "terminal")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, t := range res.Trials {
		row := make([]string, 0, len(header))
		row = append(row, t.ID)
		if paths {
			for _, v := range t.Path {
				row = append(row, money(v))
			}
		} else {
			row = append(row, money(t.Terminal))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStats writes the per-step mean and standard deviation.
func WriteStats(w io.Writer, st montecarlo.Stats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatsHeader); err != nil {
		return err
	}
	for _, s := range st.Steps {
		if err := cw.Write([]string{strconv.Itoa(s.Step), money(s.Mean), money(s.StdDev)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Dir is a Journal that writes each run as files under a directory:
// <run>.org, <run>-trajectory.csv, <run>-trials.csv and <run>-stats.csv.
type Dir struct {
	path string
}

// NewDir creates the directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return &Dir{path: path}, nil
}

// Path returns the file name used for runID and suffix.
func (d *Dir) Path(runID, suffix string) string {
	return filepath.Join(d.path, runID+suffix)
}

func (d *Dir) RecordRun(_ context.Context, run RunRecord) error {
	return WriteFile(d.Path(run.RunID, ".org"), run.WriteOrg)
}

func (d *Dir) RecordSnapshots(_ context.Context, runID string, snaps []sim.Snapshot) error {
	return WriteFile(d.Path(runID, "-trajectory.csv"), func(w io.Writer) error {
		return WriteTrajectory(w, snaps)
	})
}

func (d *Dir) RecordTrials(_ context.Context, runID string, trials []montecarlo.Trial) error {
	res := &montecarlo.Result{Trials: trials}
	if len(trials) > 0 && len(trials[0].Path) > 0 {
		res.Horizon = len(trials[0].Path)
	}
	return WriteFile(d.Path(runID, "-trials.csv"), func(w io.Writer) error {
		return WriteTable(w, res)
	})
}

func (d *Dir) RecordStats(_ context.Context, runID string, st montecarlo.Stats) error {
	return WriteFile(d.Path(runID, "-stats.csv"), func(w io.Writer) error {
		return WriteStats(w, st)
	})
}

func (d *Dir) Close() error { return nil }

// money rounds to cents. Values are only rounded here, never while
// simulating.
func money(x float64) string {
	return fixed(x, 2)
}

func price(x float64) string {
	return fixed(x, 4)
}

func fixed(x float64, places int32) string {
	return decimal.NewFromFloat(x).StringFixed(places)
}
