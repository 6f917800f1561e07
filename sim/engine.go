// Package sim replays a signal stream through a two-account savings
// portfolio: an invested account that tracks the price series and a cash
// account that earns nothing.
package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/signal"
)

var (
	// ErrMisaligned is returned when prices and signals differ in length.
	ErrMisaligned = errors.New("prices and signals are not aligned")
	// ErrNumeric is returned when a balance stops being a finite number.
	ErrNumeric = errors.New("non-finite portfolio value")
)

// Snapshot is the end-of-day record of one simulated day.
type Snapshot struct {
	Date   time.Time
	Close  float64
	Signal signal.Signal
	Kind   DayKind
	Event  Event

	Mode          Mode
	Invested      float64
	Cash          float64
	Total         float64
	CostBasis     float64
	RealizedGains float64

	// Tax and Fee were charged today; TaxPaid and FeesPaid are running sums.
	Tax      float64
	Fee      float64
	TaxPaid  float64
	FeesPaid float64
}

// Run is a completed single simulation.
type Run struct {
	Start     time.Time
	End       time.Time
	Snapshots []Snapshot
	Final     State
}

// Terminal returns the last total value, or 0 for an empty run.
func (r *Run) Terminal() float64 {
	if len(r.Snapshots) == 0 {
		return 0
	}
	return r.Snapshots[len(r.Snapshots)-1].Total
}

// Totals returns the total value column.
func (r *Run) Totals() []float64 {
	out := make([]float64, len(r.Snapshots))
	for i, s := range r.Snapshots {
		out[i] = s.Total
	}
	return out
}

// Engine is a stateless portfolio simulator. Every call to Run starts from
// a fresh State, so one Engine may serve concurrent runs.
type Engine struct {
	params Params
	logger *zap.Logger
}

// NewEngine validates params. A nil logger discards output.
func NewEngine(p Params, logger *zap.Logger) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{params: p, logger: logger}, nil
}

// Params returns the engine configuration.
func (e *Engine) Params() Params { return e.params }

// Run simulates bars with the aligned signals and records every day.
func (e *Engine) Run(bars market.Series, sigs []signal.Signal) (*Run, error) {
	run := &Run{
		Start:     bars.Start(),
		End:       bars.End(),
		Snapshots: make([]Snapshot, 0, len(bars)),
	}
	final, err := e.replay(bars, sigs, func(s Snapshot) {
		run.Snapshots = append(run.Snapshots, s)
	})
	if err != nil {
		return nil, err
	}
	run.Final = final
	return run, nil
}

// Totals simulates bars and keeps only the total value per day.
func (e *Engine) Totals(bars market.Series, sigs []signal.Signal) ([]float64, State, error) {
	out := make([]float64, 0, len(bars))
	final, err := e.replay(bars, sigs, func(s Snapshot) {
		out = append(out, s.Total)
	})
	if err != nil {
		return nil, State{}, err
	}
	return out, final, nil
}

// replay is the day loop. The order of the steps is fixed: market update,
// year-end tax, contribution, signal transition, snapshot.
func (e *Engine) replay(bars market.Series, sigs []signal.Signal, record func(Snapshot)) (State, error) {
	if len(bars) != len(sigs) {
		return State{}, fmt.Errorf("%d prices, %d signals: %w", len(bars), len(sigs), ErrMisaligned)
	}

	p := e.params
	drag := p.DailyDrag()
	st := NewState(p)

	for i, bar := range bars {
		kind := Classify(bars, i)

		if !kind.Has(DayFirst) {
			st.applyMarket(bar.Close/bars[i-1].Close-1, drag)
		}

		tax := 0.0
		if kind.Has(DayYearEnd) {
			tax = st.settleTax(p)
		}

		fee := st.contribute(p)

		ev, transferFee := st.apply(sigs[i], p)
		fee += transferFee
		if ev != NoEvent {
			e.logger.Debug("account transfer",
				zap.String("date", bar.Date.Format(market.DateLayout)),
				zap.String("event", string(ev)),
				zap.String("signal", sigs[i].String()),
				zap.Float64("invested", st.Invested),
				zap.Float64("cash", st.Cash),
			)
		}

		if !finite(st.Invested) || !finite(st.Cash) {
			return State{}, fmt.Errorf("day %d (%s): %w", i, bar.Date.Format(market.DateLayout), ErrNumeric)
		}

		record(Snapshot{
			Date:          bar.Date,
			Close:         bar.Close,
			Signal:        sigs[i],
			Kind:          kind,
			Event:         ev,
			Mode:          st.Mode,
			Invested:      st.Invested,
			Cash:          st.Cash,
			Total:         st.Total(),
			CostBasis:     st.CostBasis,
			RealizedGains: st.RealizedGains,
			Tax:           tax,
			Fee:           fee,
			TaxPaid:       st.TaxPaid,
			FeesPaid:      st.FeesPaid,
		})
	}
	return st, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
