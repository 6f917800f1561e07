package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Columns names the header fields the loader looks for. Matching is case
// insensitive. SignalColumn is optional in the input.
type Columns struct {
	Date   string
	Close  string
	Signal string
}

// DefaultColumns matches the Stooq daily export and the signals file this
// module writes.
var DefaultColumns = Columns{Date: "Date", Close: "Close", Signal: "Signal"}

// Dataset is a loaded price file. Labels holds the raw signal column when
// the input carried one, aligned with Series.
type Dataset struct {
	Series Series
	Labels []string
}

// HasLabels reports whether the input carried a signal column.
func (d *Dataset) HasLabels() bool { return d.Labels != nil }

// LoadCSV reads a price file from disk.
func LoadCSV(path string, cols Columns) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := ReadCSV(f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses a header-first CSV with at least a date and a close
// column, then validates the resulting series. UTF-8 and UTF-16 byte order
// marks are honoured.
func ReadCSV(r io.Reader, cols Columns) (*Dataset, error) {
	if cols.Date == "" {
		cols.Date = DefaultColumns.Date
	}
	if cols.Close == "" {
		cols.Close = DefaultColumns.Close
	}
	if cols.Signal == "" {
		cols.Signal = DefaultColumns.Signal
	}

	tr := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(tr)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ValidationError{Row: -1, Kind: KindMissingColumn, Msg: "empty input, no header"}
	}
	if err != nil {
		return nil, err
	}

	dateIdx, closeIdx, sigIdx := -1, -1, -1
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case strings.EqualFold(h, cols.Date):
			dateIdx = i
		case strings.EqualFold(h, cols.Close):
			closeIdx = i
		case strings.EqualFold(h, cols.Signal):
			sigIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, &ValidationError{Row: -1, Kind: KindMissingColumn, Msg: fmt.Sprintf("no %q column", cols.Date)}
	}
	if closeIdx < 0 {
		return nil, &ValidationError{Row: -1, Kind: KindMissingColumn, Msg: fmt.Sprintf("no %q column", cols.Close)}
	}

	ds := &Dataset{}
	if sigIdx >= 0 {
		ds.Labels = []string{}
	}

	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			row--
			continue
		}
		if len(rec) <= dateIdx || len(rec) <= closeIdx {
			return nil, &ValidationError{Row: row, Kind: KindBadRow, Msg: fmt.Sprintf("short row %v", rec)}
		}

		d, err := ParseDate(rec[dateIdx])
		if err != nil {
			return nil, &ValidationError{Row: row, Kind: KindBadRow, Msg: err.Error()}
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64)
		if err != nil {
			return nil, &ValidationError{Row: row, Kind: KindBadRow, Msg: fmt.Sprintf("bad close %q", rec[closeIdx])}
		}
		ds.Series = append(ds.Series, PriceBar{Date: d, Close: c})

		if sigIdx >= 0 {
			label := ""
			if sigIdx < len(rec) {
				label = strings.TrimSpace(rec[sigIdx])
			}
			ds.Labels = append(ds.Labels, label)
		}
	}

	if err := ds.Series.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// ParseDate accepts a calendar date or an RFC3339 timestamp. Timestamps are
// truncated to their UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t2, err2 := time.Parse("2006-01-02 15:04:05", s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("bad date %q", s)
		}
		t = t2
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
