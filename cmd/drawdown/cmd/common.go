package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/drawdown/journal"
	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/pkg/id"
	"github.com/rustyeddy/drawdown/signal"
)

// inputSignals is shared by every command that needs a signal stream.
var inputSignals bool

type input struct {
	ds     *market.Dataset
	points []signal.Point
	sigs   []signal.Signal
	rule   string
}

// loadInput reads the price file and either generates signals or takes
// the signal column of the file.
func loadInput() (*input, error) {
	ds, err := market.LoadCSV(cfg.Data.PricesFile, cfg.Columns())
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	logger.Info("prices loaded",
		zap.String("file", cfg.Data.PricesFile),
		zap.Int("bars", len(ds.Series)),
		zap.String("from", ds.Series.Start().Format(market.DateLayout)),
		zap.String("to", ds.Series.End().Format(market.DateLayout)),
	)

	in := &input{ds: ds}
	if inputSignals {
		if !ds.HasLabels() {
			return nil, fmt.Errorf("%s has no %q column", cfg.Data.PricesFile, cfg.Data.SignalColumn)
		}
		in.sigs, err = signal.ParseAll(ds.Labels)
		if err != nil {
			return nil, fmt.Errorf("signal column: %w", err)
		}
		in.rule = "input"
		return in, nil
	}

	g, err := signal.NewGenerator(cfg.SignalParams())
	if err != nil {
		return nil, err
	}
	in.points, err = g.Generate(ds.Series)
	if err != nil {
		return nil, fmt.Errorf("generate signals: %w", err)
	}
	in.sigs = signal.Signals(in.points)
	in.rule = cfg.Signal.Rule
	return in, nil
}

// openJournal opens the configured sinks. It returns nil when journaling
// is disabled.
func openJournal() (journal.Journal, error) {
	var sinks []journal.Journal
	if cfg.Journal.DBPath != "" {
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		sinks = append(sinks, j)
	}
	if cfg.Journal.OutDir != "" {
		d, err := journal.NewDir(cfg.Journal.OutDir)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, d)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return journal.Multi(sinks...), nil
}

// stamp fills the fields every journaled run shares.
func stamp(rec *journal.RunRecord, rule string) {
	now := time.Now().UTC()
	rec.RunID = id.At(now)
	rec.Created = now
	rec.Dataset = filepath.Base(cfg.Data.PricesFile)
	rec.Rule = rule
	if data, err := cfg.Marshal("run.yaml"); err == nil {
		rec.Config = data
	}
}

// record writes a run and its detail rows. Journal failures are reported
// but never discard the computed run.
func record(ctx context.Context, j journal.Journal, rec journal.RunRecord, detail func(journal.Journal) error) {
	if j == nil {
		return
	}
	if err := j.RecordRun(ctx, rec); err != nil {
		logger.Error("journal run", zap.String("run_id", rec.RunID), zap.Error(err))
		return
	}
	if err := detail(j); err != nil {
		logger.Error("journal detail", zap.String("run_id", rec.RunID), zap.Error(err))
		return
	}
	logger.Info("run journaled", zap.String("run_id", rec.RunID), zap.String("kind", string(rec.Kind)))
}
