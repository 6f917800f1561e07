package sim

import (
	"strings"

	"github.com/rustyeddy/drawdown/market"
)

// DayKind classifies a day of a run by looking one bar ahead.
type DayKind uint8

const (
	// DayFirst is the first bar of the run; it has no previous close.
	DayFirst DayKind = 1 << iota
	// DayYearEnd is the last bar of a calendar year inside the run,
	// including the last bar of the run.
	DayYearEnd
	// DayLast is the last bar of the run.
	DayLast
)

// Has reports whether k includes flag.
func (k DayKind) Has(flag DayKind) bool { return k&flag != 0 }

func (k DayKind) String() string {
	var parts []string
	if k.Has(DayFirst) {
		parts = append(parts, "first")
	}
	if k.Has(DayYearEnd) {
		parts = append(parts, "year_end")
	}
	if k.Has(DayLast) {
		parts = append(parts, "last")
	}
	return strings.Join(parts, "|")
}

// Classify returns the kind of day i in bars.
func Classify(bars market.Series, i int) DayKind {
	var k DayKind
	if i == 0 {
		k |= DayFirst
	}
	if i == len(bars)-1 {
		return k | DayYearEnd | DayLast
	}
	if bars[i+1].Date.Year() != bars[i].Date.Year() {
		k |= DayYearEnd
	}
	return k
}
