// Package signal turns a daily price series into a discrete trading signal
// stream using an all-time-high drawdown countdown with a moving average
// fallback.
package signal

import (
	"fmt"
	"strings"
)

// Signal is the per-day trading instruction.
type Signal string

const (
	Buy         Signal = "BUY"
	BuyDrawdown Signal = "BUY_DRAWDOWN"
	Sell        Signal = "SELL"
	Hold        Signal = "HOLD"
)

// IsBuy reports whether s asks to be invested.
func (s Signal) IsBuy() bool {
	return s == Buy || s == BuyDrawdown
}

func (s Signal) String() string { return string(s) }

// Parse reads a signal label. Labels written by earlier revisions of the
// signal files are accepted: BUY_2X, BUY_2X_DRAWDOWN and an empty cell.
func Parse(label string) (Signal, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "BUY", "BUY_2X":
		return Buy, nil
	case "BUY_DRAWDOWN", "BUY_2X_DRAWDOWN":
		return BuyDrawdown, nil
	case "SELL":
		return Sell, nil
	case "HOLD", "NONE", "", "NAN":
		return Hold, nil
	default:
		return Hold, fmt.Errorf("unknown signal %q", label)
	}
}

// ParseAll converts a label column. The first bad label aborts.
func ParseAll(labels []string) ([]Signal, error) {
	out := make([]Signal, len(labels))
	for i, l := range labels {
		s, err := Parse(l)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
