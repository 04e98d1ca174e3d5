// Package feature derives the model-input columns of a frame from its OHLCV
// columns. Every function is a pure function of the window contents, so running
// it again on an augmented frame yields the same columns.
package feature

import (
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/mlsignal/internal/frame"
	"github.com/amirphl/mlsignal/internal/indicator"
)

// BollingerStds is the band half-width in standard deviations.
const BollingerStds = 2.2

// ErrInvalidPeriod is returned for indicator windows shorter than 2.
var ErrInvalidPeriod = errors.New("feature: period must be at least 2")

type ohlcv struct {
	open, high, low, close, volume []float64
}

func load(f *frame.Frame) (ohlcv, error) {
	var (
		s   ohlcv
		err error
	)
	cols := []struct {
		name string
		dst  *[]float64
	}{
		{frame.Open, &s.open},
		{frame.High, &s.high},
		{frame.Low, &s.low},
		{frame.Close, &s.close},
		{frame.Volume, &s.volume},
	}
	for _, c := range cols {
		if *c.dst, err = f.Float(c.name); err != nil {
			return s, err
		}
	}
	return s, nil
}

// ExpandAll adds the windowed indicator columns computed over period.
func ExpandAll(f *frame.Frame, period int, meta frame.Metadata) error {
	if period < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	s, err := load(f)
	if err != nil {
		return fmt.Errorf("expand all %s: %w", meta.Pair, err)
	}

	bands := indicator.Bollinger(indicator.TypicalPrice(s.high, s.low, s.close), period, BollingerStds)
	cols := []struct {
		name   string
		values []float64
	}{
		{frame.RSI, indicator.CalculateRSI(s.close, period)},
		{frame.MFI, indicator.MFI(s.high, s.low, s.close, s.volume, period)},
		{frame.ADX, indicator.ADX(s.high, s.low, s.close, period)},
		{frame.SMA, indicator.SMA(s.close, period)},
		{frame.EMA, indicator.EMA(s.close, period)},
		{frame.BBLower, bands.Lower},
		{frame.BBMiddle, bands.Mid},
		{frame.BBUpper, bands.Upper},
		{frame.BBWidth, bands.Width()},
		{frame.CloseToBBLower, indicator.Ratio(s.close, bands.Lower)},
		{frame.ROC, indicator.ROC(s.close, period)},
		{frame.RelativeVolume, indicator.RelativeVolume(s.volume, period)},
	}
	for _, c := range cols {
		if err := f.SetFloat(c.name, c.values); err != nil {
			return fmt.Errorf("expand all %s: %w", meta.Pair, err)
		}
	}
	return nil
}

// ExpandBasic adds the unwindowed price and volume columns.
func ExpandBasic(f *frame.Frame, meta frame.Metadata) error {
	s, err := load(f)
	if err != nil {
		return fmt.Errorf("expand basic %s: %w", meta.Pair, err)
	}
	if err := f.SetFloat(frame.PctChange, indicator.PctChange(s.close)); err != nil {
		return err
	}
	if err := f.SetFloat(frame.RawVolume, s.volume); err != nil {
		return err
	}
	return f.SetFloat(frame.RawPrice, s.close)
}

// Standard adds the calendar columns: day of week (Monday is 0) and hour of
// day, both in UTC.
func Standard(f *frame.Frame, meta frame.Metadata) error {
	dates := f.Dates()
	dow := make([]float64, len(dates))
	hour := make([]float64, len(dates))
	for i, d := range dates {
		d = d.UTC()
		dow[i] = float64(weekday(d))
		hour[i] = float64(d.Hour())
	}
	if err := f.SetFloat(frame.DayOfWeek, dow); err != nil {
		return fmt.Errorf("standard %s: %w", meta.Pair, err)
	}
	return f.SetFloat(frame.HourOfDay, hour)
}

// Refresh recomputes the columns the signal rules read (ADX, Bollinger lower
// and upper bands, RSI and relative volume) from the OHLCV columns, using the
// same formulas as ExpandAll.
func Refresh(f *frame.Frame, period int, meta frame.Metadata) error {
	if period < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	s, err := load(f)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", meta.Pair, err)
	}
	bands := indicator.Bollinger(indicator.TypicalPrice(s.high, s.low, s.close), period, BollingerStds)
	cols := []struct {
		name   string
		values []float64
	}{
		{frame.ADX, indicator.ADX(s.high, s.low, s.close, period)},
		{frame.BBLower, bands.Lower},
		{frame.BBUpper, bands.Upper},
		{frame.RSI, indicator.CalculateRSI(s.close, period)},
		{frame.RelativeVolume, indicator.RelativeVolume(s.volume, period)},
	}
	for _, c := range cols {
		if err := f.SetFloat(c.name, c.values); err != nil {
			return fmt.Errorf("refresh %s: %w", meta.Pair, err)
		}
	}
	return nil
}

// weekday maps Sunday-based time.Weekday to Monday = 0 ... Sunday = 6.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
