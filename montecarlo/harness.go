// Package montecarlo runs the portfolio simulator over many historical
// start dates. The simulator is deterministic; variation comes only from
// where in history each trial starts.
package montecarlo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/signal"
	"github.com/rustyeddy/drawdown/sim"
)

// Skip reasons.
const (
	ReasonNoData       = "no trading day in month"
	ReasonShortHistory = "insufficient history"
)

// Observer receives per-trial notifications. Implementations must be safe
// for concurrent use.
type Observer interface {
	TrialDone(elapsed time.Duration, terminal float64)
	StartSkipped(reason string)
}

// Options configures a Harness.
type Options struct {
	Portfolio sim.Params
	// Horizon is the number of trading days simulated per trial.
	Horizon int
	// Trials repeats every eligible start date.
	Trials int
	// From and To bound the start months, inclusive. Only year and month
	// are used.
	From time.Time
	To   time.Time
	// Workers caps concurrent trials; 0 means GOMAXPROCS.
	Workers int
	// KeepPaths retains every trial's daily totals for per-step statistics.
	KeepPaths bool

	Logger   *zap.Logger
	Observer Observer
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", o.Horizon)
	}
	if o.Trials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", o.Trials)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if o.From.IsZero() || o.To.IsZero() {
		return fmt.Errorf("start range is required")
	}
	if monthOf(o.To).Before(monthOf(o.From)) {
		return fmt.Errorf("start range %s..%s is reversed", o.From.Format("2006-01"), o.To.Format("2006-01"))
	}
	return o.Portfolio.Validate()
}

// Start is an eligible trial start.
type Start struct {
	Month time.Time
	Date  time.Time
	Index int
}

// Skip is a start month that produced no trial.
type Skip struct {
	Month  time.Time
	Reason string
}

// Trial is one completed simulation.
type Trial struct {
	ID       string
	Start    time.Time
	End      time.Time
	Repeat   int
	Terminal float64
	Final    sim.State
	// Path holds the daily totals when paths are kept.
	Path []float64
}

// Result is the trial table. Trials are ordered by start date, then repeat.
type Result struct {
	Horizon int
	Trials  []Trial
	Skipped []Skip
	Elapsed time.Duration
}

// Terminals returns the terminal total of every trial.
func (r *Result) Terminals() []float64 {
	out := make([]float64, len(r.Trials))
	for i, t := range r.Trials {
		out[i] = t.Terminal
	}
	return out
}

// HasPaths reports whether every trial kept its daily totals. A zero
// horizon never has paths.
func (r *Result) HasPaths() bool {
	if len(r.Trials) == 0 || r.Horizon <= 0 {
		return false
	}
	for _, t := range r.Trials {
		if len(t.Path) != r.Horizon {
			return false
		}
	}
	return true
}

// Harness fans trials out over a bounded worker pool.
type Harness struct {
	opts   Options
	engine *sim.Engine
	logger *zap.Logger
}

// New validates opts and builds a Harness.
func New(opts Options) (*Harness, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers == 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	// Per-day transfer logging is too chatty across thousands of trials.
	engine, err := sim.NewEngine(opts.Portfolio, nil)
	if err != nil {
		return nil, err
	}
	return &Harness{opts: opts, engine: engine, logger: logger}, nil
}

// Options returns the effective options.
func (h *Harness) Options() Options { return h.opts }

// StartDates returns the first trading day on or after the first of every
// month in [from, to] that still has horizon bars ahead of it.
func StartDates(bars market.Series, from, to time.Time, horizon int) ([]Start, []Skip) {
	var starts []Start
	var skips []Skip
	for m := monthOf(from); !m.After(monthOf(to)); m = m.AddDate(0, 1, 0) {
		idx := bars.Index(m)
		if idx >= len(bars) || !monthOf(bars[idx].Date).Equal(m) {
			skips = append(skips, Skip{Month: m, Reason: ReasonNoData})
			continue
		}
		if idx+horizon > len(bars) {
			skips = append(skips, Skip{Month: m, Reason: ReasonShortHistory})
			continue
		}
		starts = append(starts, Start{Month: m, Date: bars[idx].Date, Index: idx})
	}
	return starts, skips
}

// Run simulates every eligible start. bars and sigs are shared read-only
// by all workers. A cancelled context stops scheduling new trials and
// returns the context error.
func (h *Harness) Run(ctx context.Context, bars market.Series, sigs []signal.Signal) (*Result, error) {
	if len(bars) != len(sigs) {
		return nil, fmt.Errorf("%d prices, %d signals: %w", len(bars), len(sigs), sim.ErrMisaligned)
	}
	began := time.Now()

	starts, skips := StartDates(bars, h.opts.From, h.opts.To, h.opts.Horizon)
	for _, s := range skips {
		h.logger.Info("start skipped",
			zap.String("start", s.Month.Format("2006-01")),
			zap.String("reason", s.Reason),
		)
		if h.opts.Observer != nil {
			h.opts.Observer.StartSkipped(s.Reason)
		}
	}

	trials := make([]Trial, len(starts)*h.opts.Trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Workers)

	for i, s := range starts {
		for k := 0; k < h.opts.Trials; k++ {
			s, k := s, k
			slot := i*h.opts.Trials + k
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				t, err := h.trial(bars, sigs, s, k)
				if err != nil {
					return fmt.Errorf("trial %s: %w", trialID(s.Date, k, h.opts.Trials), err)
				}
				trials[slot] = t
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Horizon: h.opts.Horizon,
		Trials:  trials,
		Skipped: skips,
		Elapsed: time.Since(began),
	}
	h.logger.Info("monte carlo complete",
		zap.Int("trials", len(res.Trials)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("horizon", res.Horizon),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (h *Harness) trial(bars market.Series, sigs []signal.Signal, s Start, repeat int) (Trial, error) {
	began := time.Now()
	end := s.Index + h.opts.Horizon
	window := bars[s.Index:end]

	totals, final, err := h.engine.Totals(window, sigs[s.Index:end])
	if err != nil {
		return Trial{}, err
	}
	t := Trial{
		ID:       trialID(s.Date, repeat, h.opts.Trials),
		Start:    s.Date,
		End:      window.End(),
		Repeat:   repeat,
		Terminal: totals[len(totals)-1],
		Final:    final,
	}
	if h.opts.KeepPaths {
		t.Path = totals
	}
	if h.opts.Observer != nil {
		h.opts.Observer.TrialDone(time.Since(began), t.Terminal)
	}
	return t, nil
}

func trialID(start time.Time, repeat, trials int) string {
	id := start.Format(market.DateLayout)
	if trials > 1 {
		id = fmt.Sprintf("%s#%d", id, repeat)
	}
	return id
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
