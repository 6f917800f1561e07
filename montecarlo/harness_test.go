package montecarlo

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/signal"
	"github.com/rustyeddy/drawdown/sim"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// history is 180 daily bars from 2000-01-03 through 2000-06-30.
func history(t *testing.T) (market.Series, []signal.Signal) {
	t.Helper()
	start := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := make(market.Series, 180)
	sigs := make([]signal.Signal, len(bars))
	for i := range bars {
		bars[i] = market.PriceBar{Date: start.AddDate(0, 0, i), Close: 100 + float64(i%17) + float64(i)/10}
		sigs[i] = signal.Buy
		if i%23 == 22 {
			sigs[i] = signal.Sell
		}
	}
	require.NoError(t, bars.Validate())
	return bars, sigs
}

func options() Options {
	return Options{
		Portfolio: sim.DefaultParams(),
		Horizon:   60,
		Trials:    1,
		From:      month(2000, 1),
		To:        month(2000, 7),
		Workers:   4,
		KeepPaths: true,
	}
}

type countingObserver struct {
	mu      sync.Mutex
	done    int
	skipped map[string]int
}

func (o *countingObserver) TrialDone(time.Duration, float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done++
}

func (o *countingObserver) StartSkipped(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.skipped == nil {
		o.skipped = map[string]int{}
	}
	o.skipped[reason]++
}

func TestStartDates(t *testing.T) {
	bars, _ := history(t)

	starts, skips := StartDates(bars, month(2000, 1), month(2000, 7), 60)
	require.Len(t, starts, 5)
	assert.Equal(t, time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC), starts[0].Date)
	assert.Equal(t, 0, starts[0].Index)
	assert.Equal(t, time.Date(2000, 2, 1, 0, 0, 0, 0, time.UTC), starts[1].Date)
	assert.Equal(t, 119, starts[4].Index)

	require.Len(t, skips, 2)
	assert.Equal(t, Skip{Month: month(2000, 6), Reason: ReasonShortHistory}, skips[0])
	assert.Equal(t, Skip{Month: month(2000, 7), Reason: ReasonNoData}, skips[1])
}

func TestStartDatesExactFit(t *testing.T) {
	bars, _ := history(t)
	starts, _ := StartDates(bars, month(2000, 5), month(2000, 5), 61)
	require.Len(t, starts, 1)
	assert.Equal(t, len(bars), starts[0].Index+61)

	starts, skips := StartDates(bars, month(2000, 5), month(2000, 5), 62)
	assert.Empty(t, starts)
	assert.Equal(t, ReasonShortHistory, skips[0].Reason)
}

func TestRunMatchesSingleSimulation(t *testing.T) {
	bars, sigs := history(t)
	obs := &countingObserver{}
	opts := options()
	opts.Observer = obs

	h, err := New(opts)
	require.NoError(t, err)
	res, err := h.Run(context.Background(), bars, sigs)
	require.NoError(t, err)

	require.Len(t, res.Trials, 5)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "2000-01-03", res.Trials[0].ID)
	assert.Equal(t, "2000-05-01", res.Trials[4].ID)
	assert.Equal(t, 5, obs.done)
	assert.Equal(t, 1, obs.skipped[ReasonShortHistory])
	assert.Equal(t, 1, obs.skipped[ReasonNoData])

	e, err := sim.NewEngine(opts.Portfolio, nil)
	require.NoError(t, err)
	for i, s := range []int{0, 29, 58, 89, 119} {
		run, err := e.Run(bars[s:s+60], sigs[s:s+60])
		require.NoError(t, err)
		assert.Equal(t, run.Terminal(), res.Trials[i].Terminal, "trial %d", i)
		assert.Equal(t, run.Totals(), res.Trials[i].Path, "trial %d", i)
		assert.Equal(t, run.End, res.Trials[i].End, "trial %d", i)
	}
}

func TestRunRepeatsTrials(t *testing.T) {
	bars, sigs := history(t)
	opts := options()
	opts.Trials = 3

	h, err := New(opts)
	require.NoError(t, err)
	res, err := h.Run(context.Background(), bars, sigs)
	require.NoError(t, err)

	require.Len(t, res.Trials, 15)
	assert.Equal(t, "2000-01-03#0", res.Trials[0].ID)
	assert.Equal(t, "2000-01-03#2", res.Trials[2].ID)
	assert.Equal(t, "2000-02-01#0", res.Trials[3].ID)
	assert.Equal(t, res.Trials[0].Terminal, res.Trials[1].Terminal)
	assert.Equal(t, 2, res.Trials[2].Repeat)
}

func TestRunIsOrderInsensitive(t *testing.T) {
	bars, sigs := history(t)

	var results []*Result
	for _, workers := range []int{1, 3, 16} {
		opts := options()
		opts.Workers = workers
		h, err := New(opts)
		require.NoError(t, err)
		res, err := h.Run(context.Background(), bars, sigs)
		require.NoError(t, err)
		results = append(results, res)
	}
	assert.Equal(t, results[0].Trials, results[1].Trials)
	assert.Equal(t, results[0].Trials, results[2].Trials)
}

func TestRunWithoutPaths(t *testing.T) {
	bars, sigs := history(t)
	opts := options()
	opts.KeepPaths = false

	h, err := New(opts)
	require.NoError(t, err)
	res, err := h.Run(context.Background(), bars, sigs)
	require.NoError(t, err)

	assert.False(t, res.HasPaths())
	st := res.Stats()
	assert.Empty(t, st.Steps)
	assert.Equal(t, 5, st.Terminal.N)
}

func TestHasPathsNeedsHorizon(t *testing.T) {
	res := &Result{Trials: []Trial{{ID: "1970-01-02", Terminal: 10}}}
	assert.False(t, res.HasPaths())

	res.Horizon = 1
	assert.False(t, res.HasPaths())
	res.Trials[0].Path = []float64{10}
	assert.True(t, res.HasPaths())
}

func TestRunNoEligibleStarts(t *testing.T) {
	bars, sigs := history(t)
	opts := options()
	opts.From = month(1990, 1)
	opts.To = month(1990, 3)

	h, err := New(opts)
	require.NoError(t, err)
	res, err := h.Run(context.Background(), bars, sigs)
	require.NoError(t, err)
	assert.Empty(t, res.Trials)
	assert.Len(t, res.Skipped, 3)
	assert.Equal(t, Summary{}, res.Stats().Terminal)
}

func TestRunCancelled(t *testing.T) {
	bars, sigs := history(t)
	h, err := New(options())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Run(ctx, bars, sigs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunMisaligned(t *testing.T) {
	bars, sigs := history(t)
	h, err := New(options())
	require.NoError(t, err)

	_, err = h.Run(context.Background(), bars, sigs[1:])
	assert.True(t, errors.Is(err, sim.ErrMisaligned))
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero horizon", func(o *Options) { o.Horizon = 0 }},
		{"zero trials", func(o *Options) { o.Trials = 0 }},
		{"negative workers", func(o *Options) { o.Workers = -1 }},
		{"missing range", func(o *Options) { o.From = time.Time{} }},
		{"reversed range", func(o *Options) { o.From, o.To = o.To, o.From }},
		{"bad portfolio", func(o *Options) { o.Portfolio.TradingDaysPerYear = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := options()
			tt.mutate(&o)
			_, err := New(o)
			assert.Error(t, err)
		})
	}

	h, err := New(Options{
		Portfolio: sim.DefaultParams(),
		Horizon:   1,
		Trials:    1,
		From:      month(2000, 1),
		To:        month(2000, 1),
	})
	require.NoError(t, err)
	assert.Positive(t, h.Options().Workers)
}

func TestMeanStd(t *testing.T) {
	m, sd := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, m)
	assert.InDelta(t, math.Sqrt(32.0/7.0), sd, 1e-12)

	m, sd = MeanStd([]float64{42})
	assert.Equal(t, 42.0, m)
	assert.Equal(t, 0.0, sd)

	m, sd = MeanStd(nil)
	assert.Equal(t, 0.0, m)
	assert.Equal(t, 0.0, sd)
}

func TestSummarize(t *testing.T) {
	values := []float64{50, 10, 40, 20, 30}
	s := Summarize(values)

	assert.Equal(t, 5, s.N)
	assert.Equal(t, 30.0, s.Mean)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 50.0, s.Max)
	assert.Equal(t, 30.0, s.P50)
	assert.InDelta(t, 12.0, s.P5, 1e-12)
	assert.InDelta(t, 48.0, s.P95, 1e-12)
	assert.Equal(t, []float64{50, 10, 40, 20, 30}, values)
}

func TestResultStats(t *testing.T) {
	res := &Result{
		Horizon: 3,
		Trials: []Trial{
			{ID: "a", Terminal: 30, Path: []float64{10, 20, 30}},
			{ID: "b", Terminal: 50, Path: []float64{10, 30, 50}},
		},
	}
	before := append([]Trial(nil), res.Trials...)

	st := res.Stats()
	require.Len(t, st.Steps, 3)
	assert.Equal(t, StepStat{Step: 0, Mean: 10, StdDev: 0}, st.Steps[0])
	assert.Equal(t, 25.0, st.Steps[1].Mean)
	assert.InDelta(t, math.Sqrt(50), st.Steps[1].StdDev, 1e-12)
	assert.InDelta(t, math.Sqrt(200), st.Steps[2].StdDev, 1e-12)
	assert.InDelta(t, (math.Sqrt(50)+math.Sqrt(200))/3, st.MeanStdDev, 1e-12)
	assert.Equal(t, 40.0, st.Terminal.Mean)
	assert.Equal(t, before, res.Trials)
}
