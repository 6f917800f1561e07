package montecarlo

import (
	"math"
	"sort"
)

// Summary describes a distribution of values.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	P5     float64 `json:"p5"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// StepStat is the cross-trial mean and spread at one time step.
type StepStat struct {
	Step   int     `json:"step"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Stats aggregates a Result. It is derived from the table and never
// modifies it.
type Stats struct {
	Terminal Summary
	// Steps is empty unless the result kept its paths.
	Steps []StepStat
	// MeanStdDev is the average of the per-step standard deviations.
	MeanStdDev float64
}

// Stats computes terminal and per-step statistics.
func (r *Result) Stats() Stats {
	st := Stats{Terminal: Summarize(r.Terminals())}
	if !r.HasPaths() {
		return st
	}

	col := make([]float64, len(r.Trials))
	st.Steps = make([]StepStat, r.Horizon)
	sum := 0.0
	for step := 0; step < r.Horizon; step++ {
		for i, t := range r.Trials {
			col[i] = t.Path[step]
		}
		m, sd := MeanStd(col)
		st.Steps[step] = StepStat{Step: step, Mean: m, StdDev: sd}
		sum += sd
	}
	st.MeanStdDev = sum / float64(r.Horizon)
	return st
}

// MeanStd returns the mean and the sample (n-1) standard deviation. The
// deviation is 0 for fewer than two values.
func MeanStd(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}

// Summarize computes the summary of values without reordering them.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	m, sd := MeanStd(values)
	return Summary{
		N:      len(values),
		Mean:   m,
		StdDev: sd,
		Min:    sorted[0],
		P5:     Percentile(sorted, 0.05),
		P50:    Percentile(sorted, 0.50),
		P95:    Percentile(sorted, 0.95),
		Max:    sorted[len(sorted)-1],
	}
}

// Percentile interpolates linearly between order statistics of an
// ascending slice. q is in [0,1].
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
