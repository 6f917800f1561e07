package sim

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/signal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// bars builds consecutive calendar days starting at start.
func bars(start time.Time, closes ...float64) market.Series {
	out := make(market.Series, len(closes))
	for i, c := range closes {
		out[i] = market.PriceBar{Date: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

// frictionless has no contribution, fee or expense ratio.
func frictionless(initial float64) Params {
	p := DefaultParams()
	p.InitialCash = initial
	p.Contribution = 0
	p.TERAnnual = 0
	p.MinInvestment = 0
	p.Fee = 0
	return p
}

func run(t *testing.T, p Params, b market.Series, sigs ...signal.Signal) *Run {
	t.Helper()
	e, err := NewEngine(p, nil)
	require.NoError(t, err)
	r, err := e.Run(b, sigs)
	require.NoError(t, err)
	require.Len(t, r.Snapshots, len(b))
	return r
}

func TestContributionsAccumulateInCash(t *testing.T) {
	r := run(t, DefaultParams(), bars(day(2020, 3, 2), 100, 100, 100),
		signal.Hold, signal.Hold, signal.Hold)

	last := r.Snapshots[2]
	assert.Equal(t, Cash, last.Mode)
	assert.Equal(t, 75.0, last.Cash)
	assert.Equal(t, 0.0, last.Invested)
	assert.Equal(t, 0.0, last.FeesPaid)
}

func TestTransferBelowMinimumPaysFee(t *testing.T) {
	p := DefaultParams()
	p.InitialCash = 175

	r := run(t, p, bars(day(2020, 3, 2), 100), signal.Buy)

	s := r.Snapshots[0]
	assert.Equal(t, Transfer, s.Event)
	assert.Equal(t, Invested, s.Mode)
	assert.Equal(t, 199.0, s.Invested)
	assert.Equal(t, 199.0, s.CostBasis)
	assert.Equal(t, 0.0, s.Cash)
	assert.Equal(t, 1.0, s.Fee)
}

func TestTransferAtMinimumIsFree(t *testing.T) {
	p := DefaultParams()
	p.InitialCash = 225

	r := run(t, p, bars(day(2020, 3, 2), 100), signal.BuyDrawdown)
	assert.Equal(t, 250.0, r.Snapshots[0].Invested)
	assert.Equal(t, 0.0, r.Snapshots[0].FeesPaid)
}

func TestInvestedContributionPaysFee(t *testing.T) {
	p := DefaultParams()
	p.InitialCash = 1000
	p.TERAnnual = 0

	r := run(t, p, bars(day(2020, 3, 2), 100, 100), signal.Buy, signal.Hold)

	assert.Equal(t, 1025.0, r.Snapshots[0].Invested)
	assert.Equal(t, 1049.0, r.Snapshots[1].Invested)
	assert.Equal(t, 1049.0, r.Snapshots[1].CostBasis)
	assert.Equal(t, 1.0, r.Snapshots[1].FeesPaid)
}

func TestYearEndTaxOnRealizedGain(t *testing.T) {
	p := frictionless(1000)

	r := run(t, p, bars(day(2020, 12, 28), 100, 200, 200),
		signal.Buy, signal.Sell, signal.Hold)

	sold := r.Snapshots[1]
	assert.Equal(t, Liquidation, sold.Event)
	assert.Equal(t, 2000.0, sold.Cash)
	assert.Equal(t, 1000.0, sold.RealizedGains)

	last := r.Snapshots[2]
	assert.True(t, last.Kind.Has(DayYearEnd))
	assert.InDelta(t, 213.5, last.Tax, 1e-9)
	assert.InDelta(t, 1786.5, last.Cash, 1e-9)
	assert.Equal(t, 0.0, last.RealizedGains)
}

func TestTaxSettlesAtCalendarYearBoundary(t *testing.T) {
	p := frictionless(1000)
	b := market.Series{
		{Date: day(2020, 12, 29), Close: 100},
		{Date: day(2020, 12, 30), Close: 150},
		{Date: day(2020, 12, 31), Close: 150},
		{Date: day(2021, 1, 4), Close: 150},
		{Date: day(2021, 1, 5), Close: 150},
	}
	r := run(t, p, b, signal.Buy, signal.Sell, signal.Hold, signal.Hold, signal.Hold)

	assert.Equal(t, 0.0, r.Snapshots[1].Tax)
	assert.InDelta(t, 500*0.7*0.305, r.Snapshots[2].Tax, 1e-9)
	assert.Equal(t, 0.0, r.Snapshots[4].Tax)
	assert.InDelta(t, 500*0.7*0.305, r.Final.TaxPaid, 1e-9)
}

func TestGainPolicies(t *testing.T) {
	b := bars(day(2021, 3, 1), 100, 200, 200, 150, 150)
	sigs := []signal.Signal{signal.Buy, signal.Sell, signal.Buy, signal.Sell, signal.Hold}

	tests := []struct {
		policy GainPolicy
		tax    float64
	}{
		{GainsNet, 50 * 0.7 * 0.305},
		{GainsOnly, 100 * 0.7 * 0.305},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			p := frictionless(100)
			p.GainPolicy = tt.policy
			r := run(t, p, b, sigs...)

			last := r.Snapshots[4]
			assert.InDelta(t, tt.tax, last.Tax, 1e-9)
			assert.InDelta(t, 150-tt.tax, last.Cash, 1e-9)
			assert.Equal(t, 2, r.Final.Liquidations)
			assert.Equal(t, 2, r.Final.Transfers)
		})
	}
}

func TestNetLossProducesNoTax(t *testing.T) {
	r := run(t, frictionless(100), bars(day(2021, 3, 1), 100, 50, 50),
		signal.Buy, signal.Sell, signal.Hold)
	assert.Equal(t, 0.0, r.Final.TaxPaid)
	assert.Equal(t, 50.0, r.Final.Cash)
}

func TestTaxMayDriveCashNegative(t *testing.T) {
	r := run(t, frictionless(100), bars(day(2021, 12, 28), 100, 300, 300, 300),
		signal.Buy, signal.Sell, signal.Buy, signal.Hold)

	last := r.Snapshots[3]
	assert.Equal(t, Invested, last.Mode)
	assert.Equal(t, 300.0, last.Invested)
	assert.InDelta(t, -200*0.7*0.305, last.Cash, 1e-9)
	assert.Equal(t, last.Invested+last.Cash, last.Total)
}

func TestExpenseRatioDrag(t *testing.T) {
	p := frictionless(1000)
	p.TERAnnual = 0.006

	r := run(t, p, bars(day(2021, 3, 1), 100, 100, 100, 100),
		signal.Buy, signal.Hold, signal.Hold, signal.Hold)

	want := 1000 * math.Pow(1-0.006/200, 3)
	assert.InDelta(t, want, r.Final.Invested, 1e-9)
	assert.Equal(t, 1000.0, r.Final.CostBasis)
}

func TestFirstDayHasNoMarketReturn(t *testing.T) {
	p := frictionless(0)
	p.Contribution = 300

	r := run(t, p, bars(day(2021, 3, 1), 50, 100), signal.Buy, signal.Hold)
	assert.Equal(t, 300.0, r.Snapshots[0].Invested)
	assert.Equal(t, 900.0, r.Snapshots[1].Invested)
}

func TestBuyWithoutCashIsIgnored(t *testing.T) {
	p := frictionless(0)
	r := run(t, p, bars(day(2021, 3, 1), 100, 100), signal.Buy, signal.BuyDrawdown)
	for _, s := range r.Snapshots {
		assert.Equal(t, Cash, s.Mode)
		assert.Equal(t, NoEvent, s.Event)
	}
}

func TestSellInCashModeIsIgnored(t *testing.T) {
	r := run(t, DefaultParams(), bars(day(2021, 3, 1), 100, 100), signal.Sell, signal.Sell)
	assert.Equal(t, 50.0, r.Final.Cash)
	assert.Equal(t, 0, r.Final.Liquidations)
}

func TestInvariantsHoldEveryDay(t *testing.T) {
	closes := []float64{100, 104, 98, 60, 55, 70, 90, 110, 108, 120, 95, 130}
	sigs := []signal.Signal{
		signal.Hold, signal.Buy, signal.Buy, signal.Sell, signal.BuyDrawdown, signal.Hold,
		signal.Sell, signal.Hold, signal.Buy, signal.Hold, signal.Sell, signal.Buy,
	}
	b := bars(day(2019, 12, 25), closes...)
	r := run(t, DefaultParams(), b, sigs...)

	for i, s := range r.Snapshots {
		assert.Equal(t, s.Invested+s.Cash, s.Total, "day %d", i)
		if s.Mode == Cash {
			assert.Equal(t, 0.0, s.Invested, "day %d", i)
			assert.Equal(t, 0.0, s.CostBasis, "day %d", i)
		}
		if s.Invested > 0 {
			assert.Equal(t, Invested, s.Mode, "day %d", i)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	b := bars(day(2019, 12, 25), 100, 90, 120, 80, 140)
	sigs := []signal.Signal{signal.Buy, signal.Sell, signal.Buy, signal.Sell, signal.Buy}

	e, err := NewEngine(DefaultParams(), nil)
	require.NoError(t, err)
	a, err := e.Run(b, sigs)
	require.NoError(t, err)
	c, err := e.Run(b, sigs)
	require.NoError(t, err)
	assert.Equal(t, a, c)

	totals, final, err := e.Totals(b, sigs)
	require.NoError(t, err)
	assert.Equal(t, a.Totals(), totals)
	assert.Equal(t, a.Final, final)
	assert.Equal(t, a.Terminal(), totals[len(totals)-1])
}

func TestRunMisaligned(t *testing.T) {
	e, err := NewEngine(DefaultParams(), nil)
	require.NoError(t, err)

	_, err = e.Run(bars(day(2021, 3, 1), 100, 100), []signal.Signal{signal.Hold})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMisaligned))
}

func TestEmptyRun(t *testing.T) {
	r := run(t, DefaultParams(), nil)
	assert.Empty(t, r.Snapshots)
	assert.Equal(t, 0.0, r.Terminal())
}

func TestClassify(t *testing.T) {
	b := market.Series{
		{Date: day(2020, 12, 30), Close: 1},
		{Date: day(2020, 12, 31), Close: 1},
		{Date: day(2021, 1, 4), Close: 1},
		{Date: day(2021, 1, 5), Close: 1},
	}
	assert.Equal(t, DayFirst, Classify(b, 0))
	assert.Equal(t, DayYearEnd, Classify(b, 1))
	assert.Equal(t, DayKind(0), Classify(b, 2))
	assert.Equal(t, DayYearEnd|DayLast, Classify(b, 3))
	assert.Equal(t, DayFirst|DayYearEnd|DayLast, Classify(b[:1], 0))
	assert.Equal(t, "year_end|last", Classify(b, 3).String())
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative contribution", func(p *Params) { p.Contribution = -1 }},
		{"negative initial cash", func(p *Params) { p.InitialCash = -5 }},
		{"ter out of range", func(p *Params) { p.TERAnnual = 1 }},
		{"zero trading days", func(p *Params) { p.TradingDaysPerYear = 0 }},
		{"fee eats contribution", func(p *Params) { p.Fee = 25 }},
		{"tax rate", func(p *Params) { p.TaxRate = 1.5 }},
		{"allowance", func(p *Params) { p.TaxAllowance = -0.1 }},
		{"policy", func(p *Params) { p.GainPolicy = "sometimes" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
			_, err := NewEngine(p, nil)
			assert.Error(t, err)
		})
	}
	assert.NoError(t, DefaultParams().Validate())
}
