package indicators

import (
	"fmt"
	"math"
)

// SimpleMA is a trailing simple moving average.
//
// With partial set, the average is defined from the first update and uses
// whatever history exists until the window fills. Without it the average
// is only Ready once period closes have been seen.
type SimpleMA struct {
	period  int
	partial bool
	window  []float64
	next    int
	count   int
}

// NewMA creates a full-window simple moving average.
func NewMA(period int) *SimpleMA {
	return &SimpleMA{period: period, window: make([]float64, period)}
}

// NewPartialMA creates a moving average that averages available history
// while fewer than period closes exist.
func NewPartialMA(period int) *SimpleMA {
	m := NewMA(period)
	m.partial = true
	return m
}

func (m *SimpleMA) Name() string {
	return fmt.Sprintf("SMA(%d)", m.period)
}

func (m *SimpleMA) Warmup() int {
	if m.partial {
		return 1
	}
	return m.period
}

func (m *SimpleMA) Reset() {
	for i := range m.window {
		m.window[i] = 0
	}
	m.next = 0
	m.count = 0
}

func (m *SimpleMA) Update(close float64) {
	m.window[m.next] = close
	m.next = (m.next + 1) % m.period
	if m.count < m.period {
		m.count++
	}
}

func (m *SimpleMA) Ready() bool {
	return m.count >= m.Warmup()
}

// Value sums the live window on every call so no rounding error carries
// across tens of thousands of updates.
func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	sum := 0.0
	for i := 0; i < m.count; i++ {
		sum += m.window[i]
	}
	return sum / float64(m.count)
}

// MA calculates the simple moving average of the last period closes.
func MA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", period, len(closes))
	}

	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period), nil
}

// AllTimeHigh tracks the running maximum close. It starts at negative
// infinity so the first observed close is always its own high.
type AllTimeHigh struct {
	high float64
}

// NewAllTimeHigh returns a tracker with no history.
func NewAllTimeHigh() *AllTimeHigh {
	return &AllTimeHigh{high: math.Inf(-1)}
}

func (a *AllTimeHigh) Name() string { return "ATH" }
func (a *AllTimeHigh) Warmup() int  { return 1 }
func (a *AllTimeHigh) Reset()       { a.high = math.Inf(-1) }
func (a *AllTimeHigh) Ready() bool  { return !math.IsInf(a.high, -1) }
func (a *AllTimeHigh) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.high
}

func (a *AllTimeHigh) Update(close float64) {
	if close > a.high {
		a.high = close
	}
}
