// Package market holds the daily price series consumed by the signal
// generator and the portfolio simulator.
package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-day layout used for every date column.
const DateLayout = "2006-01-02"

// PriceBar is one daily close.
type PriceBar struct {
	Date  time.Time
	Close float64
}

// Series is a date-ordered sequence of daily closes. A Series is treated as
// read-only once loaded; simulations slice it but never write to it.
type Series []PriceBar

// ErrInvalidSeries is wrapped by every ValidationError.
var ErrInvalidSeries = errors.New("invalid price series")

// ValidationError kinds.
const (
	KindMissingColumn    = "missing_column"
	KindNonPositivePrice = "non_positive_price"
	KindNonFinitePrice   = "non_finite_price"
	KindUnsorted         = "unsorted"
	KindDuplicateDate    = "duplicate_date"
	KindBadRow           = "bad_row"
)

// ValidationError reports the first offending row of an input series.
// Row is zero based over data rows; -1 means the error is not row specific.
type ValidationError struct {
	Row  int
	Kind string
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Kind, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidSeries }

// Validate checks that closes are finite and positive and that dates are
// strictly increasing. An empty series is valid.
func (s Series) Validate() error {
	for i, b := range s {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return &ValidationError{Row: i, Kind: KindNonFinitePrice, Msg: fmt.Sprintf("close %v", b.Close)}
		}
		if b.Close <= 0 {
			return &ValidationError{Row: i, Kind: KindNonPositivePrice, Msg: fmt.Sprintf("close %v", b.Close)}
		}
		if i == 0 {
			continue
		}
		prev := s[i-1].Date
		switch {
		case b.Date.Equal(prev):
			return &ValidationError{Row: i, Kind: KindDuplicateDate, Msg: b.Date.Format(DateLayout)}
		case b.Date.Before(prev):
			return &ValidationError{Row: i, Kind: KindUnsorted,
				Msg: fmt.Sprintf("%s follows %s", b.Date.Format(DateLayout), prev.Format(DateLayout))}
		}
	}
	return nil
}

// Closes returns the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Index returns the position of the first bar dated on or after t, or
// len(s) if every bar is earlier.
func (s Series) Index(t time.Time) int {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s[mid].Date.Before(t) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Start returns the first date, or the zero time for an empty series.
func (s Series) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Date
}

// End returns the last date, or the zero time for an empty series.
func (s Series) End() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}
