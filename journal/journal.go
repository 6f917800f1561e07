// Package journal persists simulation runs: CSV files for spreadsheets,
// a SQLite database for history and org-mode reports for notes.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/drawdown/montecarlo"
	"github.com/rustyeddy/drawdown/sim"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// RunKind names the command that produced a run.
type RunKind string

const (
	KindSimulate   RunKind = "simulate"
	KindMonteCarlo RunKind = "montecarlo"
)

// RunRecord mirrors the runs table.
type RunRecord struct {
	RunID   string    `json:"run_id"`
	Kind    RunKind   `json:"kind"`
	Created time.Time `json:"created"`
	Dataset string    `json:"dataset"`
	Rule    string    `json:"rule"`
	Config  []byte    `json:"-"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Days is the run length for a simulation or the horizon for a Monte
	// Carlo run.
	Days    int `json:"days"`
	Trials  int `json:"trials"`
	Skipped int `json:"skipped"`

	// Terminal describes the final total values; a single simulation has
	// N = 1.
	Terminal   montecarlo.Summary `json:"terminal"`
	MeanStdDev float64            `json:"mean_step_stddev"`

	TaxPaid      float64 `json:"tax_paid"`
	FeesPaid     float64 `json:"fees_paid"`
	Transfers    int     `json:"transfers"`
	Liquidations int     `json:"liquidations"`

	Notes []string `json:"notes,omitempty"`
}

// SimulationRun summarizes a single simulation.
func SimulationRun(r *sim.Run) RunRecord {
	rec := RunRecord{
		Kind:         KindSimulate,
		Start:        r.Start,
		End:          r.End,
		Days:         len(r.Snapshots),
		Trials:       1,
		TaxPaid:      r.Final.TaxPaid,
		FeesPaid:     r.Final.FeesPaid,
		Transfers:    r.Final.Transfers,
		Liquidations: r.Final.Liquidations,
	}
	if len(r.Snapshots) > 0 {
		rec.Terminal = montecarlo.Summarize([]float64{r.Terminal()})
	}
	return rec
}

// MonteCarloRun summarizes a harness result.
func MonteCarloRun(res *montecarlo.Result, st montecarlo.Stats) RunRecord {
	rec := RunRecord{
		Kind:       KindMonteCarlo,
		Days:       res.Horizon,
		Trials:     len(res.Trials),
		Skipped:    len(res.Skipped),
		Terminal:   st.Terminal,
		MeanStdDev: st.MeanStdDev,
	}
	for i, t := range res.Trials {
		if i == 0 || t.Start.Before(rec.Start) {
			rec.Start = t.Start
		}
		if t.End.After(rec.End) {
			rec.End = t.End
		}
		rec.TaxPaid += t.Final.TaxPaid
		rec.FeesPaid += t.Final.FeesPaid
		rec.Transfers += t.Final.Transfers
		rec.Liquidations += t.Final.Liquidations
	}
	for _, s := range res.Skipped {
		rec.Notes = append(rec.Notes, s.Month.Format("2006-01")+" skipped: "+s.Reason)
	}
	return rec
}

// Journal records runs.
type Journal interface {
	RecordRun(ctx context.Context, run RunRecord) error
	RecordSnapshots(ctx context.Context, runID string, snaps []sim.Snapshot) error
	RecordTrials(ctx context.Context, runID string, trials []montecarlo.Trial) error
	RecordStats(ctx context.Context, runID string, st montecarlo.Stats) error
	Close() error
}

// Multi fans every call out to each journal in order and stops at the
// first error.
func Multi(js ...Journal) Journal {
	return multi(js)
}

type multi []Journal

func (m multi) RecordRun(ctx context.Context, run RunRecord) error {
	for _, j := range m {
		if err := j.RecordRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) RecordSnapshots(ctx context.Context, runID string, snaps []sim.Snapshot) error {
	for _, j := range m {
		if err := j.RecordSnapshots(ctx, runID, snaps); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) RecordTrials(ctx context.Context, runID string, trials []montecarlo.Trial) error {
	for _, j := range m {
		if err := j.RecordTrials(ctx, runID, trials); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) RecordStats(ctx context.Context, runID string, st montecarlo.Stats) error {
	for _, j := range m {
		if err := j.RecordStats(ctx, runID, st); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}
