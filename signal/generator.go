package signal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/drawdown/indicators"
	"github.com/rustyeddy/drawdown/market"
)

// Rule selects how signals are derived.
type Rule string

const (
	// RuleSMADrawdown is the drawdown countdown with the SMA fallback.
	RuleSMADrawdown Rule = "sma-drawdown"
	// RuleSMA uses the moving average alone.
	RuleSMA Rule = "sma"
	// RuleBuyHold emits BUY every day.
	RuleBuyHold Rule = "buy-hold"
)

// ErrDegenerateDrawdown is returned when a drawdown cannot be computed
// from the running high.
var ErrDegenerateDrawdown = errors.New("degenerate drawdown")

// Threshold starts a countdown of Days when the drawdown percentage is at
// or below Pct (a negative number such as -40).
type Threshold struct {
	Pct  float64
	Days int
}

// Params configures a Generator.
type Params struct {
	Rule              Rule
	SMAWindow         int
	RequireFullWindow bool
	Deep              Threshold
	Shallow           Threshold
}

// DefaultParams returns the 375-day SMA with the -40%/214 and -30%/416
// drawdown windows.
func DefaultParams() Params {
	return Params{
		Rule:              RuleSMADrawdown,
		SMAWindow:         375,
		RequireFullWindow: true,
		Deep:              Threshold{Pct: -40, Days: 214},
		Shallow:           Threshold{Pct: -30, Days: 416},
	}
}

// Validate checks parameter consistency.
func (p Params) Validate() error {
	switch p.Rule {
	case RuleSMADrawdown, RuleSMA, RuleBuyHold:
	default:
		return fmt.Errorf("unknown rule %q", p.Rule)
	}
	if p.Rule == RuleBuyHold {
		return nil
	}
	if p.SMAWindow <= 0 {
		return fmt.Errorf("sma window must be positive, got %d", p.SMAWindow)
	}
	if p.Rule == RuleSMA {
		return nil
	}
	if p.Deep.Days <= 0 || p.Shallow.Days <= 0 {
		return fmt.Errorf("countdown durations must be positive")
	}
	if p.Deep.Pct >= 0 || p.Shallow.Pct >= 0 {
		return fmt.Errorf("drawdown thresholds must be negative percentages")
	}
	if p.Deep.Pct > p.Shallow.Pct {
		return fmt.Errorf("deep threshold %.2f%% must be at or below shallow threshold %.2f%%", p.Deep.Pct, p.Shallow.Pct)
	}
	return nil
}

// DrawdownState is the generator's private running state.
type DrawdownState struct {
	AllTimeHigh float64
	Countdown   int
}

// Point is one generated day with the intermediate values that produced
// its signal.
type Point struct {
	Date          time.Time
	Close         float64
	SMA           float64
	SMAReady      bool
	AllTimeHigh   float64
	DrawdownRatio float64
	DrawdownPct   float64
	// Countdown is the value after the end-of-day decrement.
	Countdown int
	Triggered bool
	Signal    Signal
}

// Generator derives signals from a price series. A Generator holds no
// state between calls to Generate.
type Generator struct {
	params Params
}

// NewGenerator validates params and returns a Generator.
func NewGenerator(p Params) (*Generator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Generator{params: p}, nil
}

// Params returns the generator configuration.
func (g *Generator) Params() Params { return g.params }

// Generate produces one Point per bar. An empty series yields no points
// and no error. Invalid series are rejected before any signal is derived.
func (g *Generator) Generate(series market.Series) ([]Point, error) {
	if len(series) == 0 {
		return nil, nil
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	var sma *indicators.SimpleMA
	if g.params.Rule != RuleBuyHold {
		if g.params.RequireFullWindow {
			sma = indicators.NewMA(g.params.SMAWindow)
		} else {
			sma = indicators.NewPartialMA(g.params.SMAWindow)
		}
	}
	ath := indicators.NewAllTimeHigh()
	st := DrawdownState{}

	out := make([]Point, len(series))
	for i, bar := range series {
		ath.Update(bar.Close)
		st.AllTimeHigh = ath.Value()
		if st.AllTimeHigh <= 0 {
			return nil, fmt.Errorf("day %d: all-time high %v: %w", i, st.AllTimeHigh, ErrDegenerateDrawdown)
		}

		p := Point{
			Date:          bar.Date,
			Close:         bar.Close,
			AllTimeHigh:   st.AllTimeHigh,
			DrawdownRatio: bar.Close / st.AllTimeHigh,
			DrawdownPct:   (bar.Close - st.AllTimeHigh) / st.AllTimeHigh * 100,
		}
		if math.IsNaN(p.DrawdownPct) || math.IsInf(p.DrawdownPct, 0) {
			return nil, fmt.Errorf("day %d: drawdown %v: %w", i, p.DrawdownPct, ErrDegenerateDrawdown)
		}

		if sma != nil {
			sma.Update(bar.Close)
			p.SMAReady = sma.Ready()
			p.SMA = sma.Value()
		}

		p.Signal, p.Triggered = g.step(&st, p)
		if st.Countdown > 0 {
			st.Countdown--
		}
		p.Countdown = st.Countdown
		out[i] = p
	}
	return out, nil
}

// step decides today's signal and updates the countdown. It reports
// whether a countdown was started or refreshed today.
func (g *Generator) step(st *DrawdownState, p Point) (Signal, bool) {
	switch g.params.Rule {
	case RuleBuyHold:
		return Buy, false
	case RuleSMA:
		return smaSignal(p), false
	}

	deep, shallow := g.params.Deep, g.params.Shallow
	if st.Countdown > 0 {
		if p.DrawdownPct <= deep.Pct {
			st.Countdown = deep.Days
			return BuyDrawdown, true
		}
		return BuyDrawdown, false
	}

	switch {
	case p.DrawdownPct <= deep.Pct:
		st.Countdown = deep.Days
		return BuyDrawdown, true
	case p.DrawdownPct <= shallow.Pct:
		st.Countdown = shallow.Days
		return BuyDrawdown, true
	}
	return smaSignal(p), false
}

func smaSignal(p Point) Signal {
	if !p.SMAReady {
		return Hold
	}
	if p.Close >= p.SMA {
		return Buy
	}
	return Sell
}

// Signals extracts the signal column.
func Signals(points []Point) []Signal {
	out := make([]Signal, len(points))
	for i, p := range points {
		out[i] = p.Signal
	}
	return out
}
