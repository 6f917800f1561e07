package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/montecarlo"
	"github.com/rustyeddy/drawdown/sim"
)

// SQLite is the run journal database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens path and creates the schema. Use ":memory:" for a
// throwaway journal.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, kind, created, dataset, rule, config, start_date, end_date, days, trials, skipped,
		 n, mean, stddev, min, p5, p50, p95, max, mean_step_stddev,
		 tax_paid, fees_paid, transfers, liquidations, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, string(r.Kind), r.Created.UTC(), r.Dataset, r.Rule, r.Config,
		date(r.Start), date(r.End), r.Days, r.Trials, r.Skipped,
		r.Terminal.N, r.Terminal.Mean, r.Terminal.StdDev, r.Terminal.Min,
		r.Terminal.P5, r.Terminal.P50, r.Terminal.P95, r.Terminal.Max, r.MeanStdDev,
		r.TaxPaid, r.FeesPaid, r.Transfers, r.Liquidations, strings.Join(r.Notes, "\n"),
	)
	return err
}

func (j *SQLite) RecordSnapshots(ctx context.Context, runID string, snaps []sim.Snapshot) error {
	return j.bulk(ctx, `
		INSERT INTO snapshots
		(run_id, day, date, close, signal, event, mode, invested, cash, total,
		 cost_basis, realized_gains, tax, fee, tax_paid, fees_paid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(snaps), func(stmt *sql.Stmt, i int) error {
			s := snaps[i]
			_, err := stmt.ExecContext(ctx,
				runID, i, date(s.Date), s.Close, s.Signal.String(), string(s.Event), string(s.Mode),
				s.Invested, s.Cash, s.Total, s.CostBasis, s.RealizedGains,
				s.Tax, s.Fee, s.TaxPaid, s.FeesPaid,
			)
			return err
		})
}

func (j *SQLite) RecordTrials(ctx context.Context, runID string, trials []montecarlo.Trial) error {
	return j.bulk(ctx, `
		INSERT INTO trials
		(run_id, seq, trial_id, start_date, end_date, repeat, terminal, tax_paid, fees_paid, transfers, liquidations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(trials), func(stmt *sql.Stmt, i int) error {
			t := trials[i]
			_, err := stmt.ExecContext(ctx,
				runID, i, t.ID, date(t.Start), date(t.End), t.Repeat, t.Terminal,
				t.Final.TaxPaid, t.Final.FeesPaid, t.Final.Transfers, t.Final.Liquidations,
			)
			return err
		})
}

func (j *SQLite) RecordStats(ctx context.Context, runID string, st montecarlo.Stats) error {
	return j.bulk(ctx, `
		INSERT INTO stats (run_id, step, mean, stddev) VALUES (?, ?, ?, ?)`,
		len(st.Steps), func(stmt *sql.Stmt, i int) error {
			s := st.Steps[i]
			_, err := stmt.ExecContext(ctx, runID, s.Step, s.Mean, s.StdDev)
			return err
		})
}

// bulk runs exec n times inside one transaction.
func (j *SQLite) bulk(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func date(t time.Time) string {
	return t.Format(market.DateLayout)
}
