package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/montecarlo"
)

// SnapshotRecord is a stored trajectory row.
type SnapshotRecord struct {
	Day           int       `json:"day"`
	Date          time.Time `json:"date"`
	Close         float64   `json:"close"`
	Signal        string    `json:"signal"`
	Event         string    `json:"event,omitempty"`
	Mode          string    `json:"mode"`
	Invested      float64   `json:"invested"`
	Cash          float64   `json:"cash"`
	Total         float64   `json:"total"`
	CostBasis     float64   `json:"cost_basis"`
	RealizedGains float64   `json:"realized_gains"`
	Tax           float64   `json:"tax"`
	Fee           float64   `json:"fee"`
	TaxPaid       float64   `json:"tax_paid"`
	FeesPaid      float64   `json:"fees_paid"`
}

// TrialRecord is a stored Monte Carlo trial.
type TrialRecord struct {
	TrialID      string    `json:"trial_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Repeat       int       `json:"repeat"`
	Terminal     float64   `json:"terminal"`
	TaxPaid      float64   `json:"tax_paid"`
	FeesPaid     float64   `json:"fees_paid"`
	Transfers    int       `json:"transfers"`
	Liquidations int       `json:"liquidations"`
}

const runColumns = `run_id, kind, created, dataset, rule, config, start_date, end_date, days, trials, skipped,
	n, mean, stddev, min, p5, p50, p95, max, mean_step_stddev,
	tax_paid, fees_paid, transfers, liquidations, notes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		r          RunRecord
		kind       string
		start, end string
		notes      string
	)
	err := row.Scan(
		&r.RunID, &kind, &r.Created, &r.Dataset, &r.Rule, &r.Config, &start, &end,
		&r.Days, &r.Trials, &r.Skipped,
		&r.Terminal.N, &r.Terminal.Mean, &r.Terminal.StdDev, &r.Terminal.Min,
		&r.Terminal.P5, &r.Terminal.P50, &r.Terminal.P95, &r.Terminal.Max, &r.MeanStdDev,
		&r.TaxPaid, &r.FeesPaid, &r.Transfers, &r.Liquidations, &notes,
	)
	if err != nil {
		return RunRecord{}, err
	}
	r.Kind = RunKind(kind)
	if r.Start, err = market.ParseDate(start); err != nil {
		return RunRecord{}, err
	}
	if r.End, err = market.ParseDate(end); err != nil {
		return RunRecord{}, err
	}
	if notes != "" {
		r.Notes = strings.Split(notes, "\n")
	}
	return r, nil
}

// GetRun returns a single run by id.
func (j *SQLite) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return RunRecord{}, err
	}
	return r, nil
}

// ListRuns returns the newest runs first. A limit of 0 returns every run.
func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY created DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSnapshots returns a run's trajectory in day order.
func (j *SQLite) ListSnapshots(ctx context.Context, runID string) ([]SnapshotRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT day, date, close, signal, event, mode, invested, cash, total,
		       cost_basis, realized_gains, tax, fee, tax_paid, fees_paid
		FROM snapshots
		WHERE run_id = ?
		ORDER BY day ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var (
			s SnapshotRecord
			d string
		)
		if err := rows.Scan(
			&s.Day, &d, &s.Close, &s.Signal, &s.Event, &s.Mode,
			&s.Invested, &s.Cash, &s.Total, &s.CostBasis, &s.RealizedGains,
			&s.Tax, &s.Fee, &s.TaxPaid, &s.FeesPaid,
		); err != nil {
			return nil, err
		}
		if s.Date, err = market.ParseDate(d); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTrials returns a run's trials in table order.
func (j *SQLite) ListTrials(ctx context.Context, runID string) ([]TrialRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT trial_id, start_date, end_date, repeat, terminal, tax_paid, fees_paid, transfers, liquidations
		FROM trials
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrialRecord
	for rows.Next() {
		var (
			t          TrialRecord
			start, end string
		)
		if err := rows.Scan(
			&t.TrialID, &start, &end, &t.Repeat, &t.Terminal,
			&t.TaxPaid, &t.FeesPaid, &t.Transfers, &t.Liquidations,
		); err != nil {
			return nil, err
		}
		if t.Start, err = market.ParseDate(start); err != nil {
			return nil, err
		}
		if t.End, err = market.ParseDate(end); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListStats returns a run's per-step statistics.
func (j *SQLite) ListStats(ctx context.Context, runID string) ([]montecarlo.StepStat, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT step, mean, stddev FROM stats WHERE run_id = ? ORDER BY step ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []montecarlo.StepStat
	for rows.Next() {
		var s montecarlo.StepStat
		if err := rows.Scan(&s.Step, &s.Mean, &s.StdDev); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportRunOrg loads a run and renders its org report.
func (j *SQLite) ExportRunOrg(ctx context.Context, runID string) (string, error) {
	r, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := r.WriteOrg(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}
