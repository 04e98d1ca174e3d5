package candle

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var csvColumns = []string{"date", "open", "high", "low", "close", "volume"}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadCSV loads candles from a CSV stream whose header contains
// date, open, high, low, close and volume. Extra columns are ignored.
func ReadCSV(r io.Reader, symbol, timeframe string) ([]Candle, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			"date":   series.String,
			"open":   series.Float,
			"high":   series.Float,
			"low":    series.Float,
			"close":  series.Float,
			"volume": series.Float,
		}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read candles csv: %w", df.Err)
	}

	names := df.Names()
	for _, col := range csvColumns {
		if !slices.Contains(names, col) {
			return nil, fmt.Errorf("candles csv is missing column %q", col)
		}
	}

	dates := df.Col("date").Records()
	opens := df.Col("open").Float()
	highs := df.Col("high").Float()
	lows := df.Col("low").Float()
	closes := df.Col("close").Float()
	volumes := df.Col("volume").Float()

	candles := make([]Candle, df.Nrow())
	for i := range candles {
		ts, err := parseDate(dates[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		candles[i] = Candle{
			Timestamp: ts,
			Open:      opens[i],
			High:      highs[i],
			Low:       lows[i],
			Close:     closes[i],
			Volume:    volumes[i],
			Symbol:    symbol,
			Timeframe: timeframe,
			Source:    "csv",
		}
	}
	SortByTime(candles)
	return candles, nil
}

// LoadCSV opens path and reads candles from it.
func LoadCSV(path, symbol, timeframe string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open candles csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, symbol, timeframe)
}

// parseDate accepts the layouts above or a unix timestamp in seconds or
// milliseconds. Results are in UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
