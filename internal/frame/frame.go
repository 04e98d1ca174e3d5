// Package frame holds the tabular time series that flows through the signal
// pipeline. A Frame is a gota DataFrame with a parallel date index.
package frame

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/amirphl/mlsignal/internal/candle"
)

var (
	// ErrMissingColumn is returned when a requested column is not present.
	ErrMissingColumn = errors.New("frame: missing column")
	// ErrLengthMismatch is returned when a column does not match the frame length.
	ErrLengthMismatch = errors.New("frame: column length mismatch")
)

// Metadata identifies the series a frame belongs to.
type Metadata struct {
	Pair      string
	Timeframe string
}

// Undefined reports whether v is NaN or infinite.
func Undefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Frame is a chronological table of per-candle values.
type Frame struct {
	dates []time.Time
	df    dataframe.DataFrame
	empty bool
}

// New returns a frame indexed by dates with no columns.
func New(dates []time.Time) *Frame {
	d := make([]time.Time, len(dates))
	copy(d, dates)
	return &Frame{dates: d, empty: true}
}

// FromCandles builds a frame with the OHLCV columns of candles.
func FromCandles(candles []candle.Candle) *Frame {
	dates := make([]time.Time, len(candles))
	for i, c := range candles {
		dates[i] = c.Timestamp.UTC()
	}
	f := New(dates)
	open, high, low, closes, volume := candle.Series(candles)
	f.put(series.New(open, series.Float, Open))
	f.put(series.New(high, series.Float, High))
	f.put(series.New(low, series.Float, Low))
	f.put(series.New(closes, series.Float, Close))
	f.put(series.New(volume, series.Float, Volume))
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.dates)
}

// Dates returns a copy of the date index.
func (f *Frame) Dates() []time.Time {
	d := make([]time.Time, len(f.dates))
	copy(d, f.dates)
	return d
}

// Date returns the timestamp of row i.
func (f *Frame) Date(i int) time.Time {
	return f.dates[i]
}

// Names returns the column names in insertion order. The date index is not
// included.
func (f *Frame) Names() []string {
	if f.empty {
		return nil
	}
	return f.df.Names()
}

// Has reports whether every named column is present.
func (f *Frame) Has(names ...string) bool {
	present := make(map[string]struct{})
	for _, n := range f.Names() {
		present[n] = struct{}{}
	}
	for _, n := range names {
		if _, ok := present[n]; !ok {
			return false
		}
	}
	return true
}

// Float returns a copy of a numeric column. Missing values are NaN.
func (f *Frame) Float(name string) ([]float64, error) {
	s, err := f.col(name)
	if err != nil {
		return nil, err
	}
	return s.Float(), nil
}

// FloatAt returns the value of a numeric column at row i.
func (f *Frame) FloatAt(name string, i int) (float64, error) {
	s, err := f.col(name)
	if err != nil {
		return math.NaN(), err
	}
	if i < 0 || i >= s.Len() {
		return math.NaN(), fmt.Errorf("frame: row %d out of range [0,%d)", i, s.Len())
	}
	return s.Elem(i).Float(), nil
}

// Int returns a copy of an integer column.
func (f *Frame) Int(name string) ([]int, error) {
	s, err := f.col(name)
	if err != nil {
		return nil, err
	}
	out := make([]int, s.Len())
	for i, v := range s.Float() {
		if Undefined(v) {
			continue
		}
		out[i] = int(v)
	}
	return out, nil
}

// String returns a copy of a text column.
func (f *Frame) String(name string) ([]string, error) {
	s, err := f.col(name)
	if err != nil {
		return nil, err
	}
	return s.Records(), nil
}

// SetFloat adds or replaces a numeric column.
func (f *Frame) SetFloat(name string, values []float64) error {
	if len(values) != f.Len() {
		return fmt.Errorf("%w: %s has %d values, frame has %d rows", ErrLengthMismatch, name, len(values), f.Len())
	}
	return f.put(series.New(values, series.Float, name))
}

// SetInt adds or replaces an integer column.
func (f *Frame) SetInt(name string, values []int) error {
	if len(values) != f.Len() {
		return fmt.Errorf("%w: %s has %d values, frame has %d rows", ErrLengthMismatch, name, len(values), f.Len())
	}
	return f.put(series.New(values, series.Int, name))
}

// SetString adds or replaces a text column.
func (f *Frame) SetString(name string, values []string) error {
	if len(values) != f.Len() {
		return fmt.Errorf("%w: %s has %d values, frame has %d rows", ErrLengthMismatch, name, len(values), f.Len())
	}
	return f.put(series.New(values, series.String, name))
}

// Drop removes the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	var drop []string
	for _, n := range names {
		if f.Has(n) {
			drop = append(drop, n)
		}
	}
	if len(drop) == 0 {
		return
	}
	if len(drop) == len(f.Names()) {
		f.df = dataframe.DataFrame{}
		f.empty = true
		return
	}
	f.df = f.df.Drop(drop)
}

// Copy returns a deep copy.
func (f *Frame) Copy() *Frame {
	c := &Frame{dates: f.Dates(), empty: f.empty}
	if !f.empty {
		c.df = f.df.Copy()
	}
	return c
}

// Columns returns the names matching prefix, sorted.
func (f *Frame) Columns(prefix string) []string {
	var out []string
	for _, n := range f.Names() {
		if len(n) >= len(prefix) && n[:len(prefix)] == prefix {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// DataFrame returns a copy of the underlying table with the date index
// prepended as an RFC 3339 text column.
func (f *Frame) DataFrame() dataframe.DataFrame {
	dates := make([]string, len(f.dates))
	for i, d := range f.dates {
		dates[i] = d.Format(time.RFC3339)
	}
	out := dataframe.New(series.New(dates, series.String, Date))
	if f.empty {
		return out
	}
	return out.CBind(f.df)
}

func (f *Frame) col(name string) (series.Series, error) {
	if !f.Has(name) {
		return series.Series{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return f.df.Col(name), nil
}

func (f *Frame) put(s series.Series) error {
	if s.Err != nil {
		return s.Err
	}
	if f.empty {
		df := dataframe.New(s)
		if df.Err != nil {
			return df.Err
		}
		f.df = df
		f.empty = false
		return nil
	}
	df := f.df.Mutate(s)
	if df.Err != nil {
		return fmt.Errorf("frame: set %s: %w", s.Name, df.Err)
	}
	f.df = df
	return nil
}
