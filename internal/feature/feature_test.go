package feature

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/mlsignal/internal/candle"
	"github.com/amirphl/mlsignal/internal/frame"
)

var meta = frame.Metadata{Pair: "BTC/USDT", Timeframe: "5m"}

func randomCandles(n int, seed int64) []candle.Candle {
	r := rand.New(rand.NewSource(seed))
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	price := 100.0
	for i := range out {
		open := price
		price *= 1 + (r.Float64()-0.5)*0.04
		hi := math.Max(open, price) * (1 + r.Float64()*0.005)
		lo := math.Min(open, price) * (1 - r.Float64()*0.005)
		out[i] = candle.Candle{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      open,
			High:      hi,
			Low:       lo,
			Close:     price,
			Volume:    500 + r.Float64()*1000,
			Symbol:    meta.Pair,
			Timeframe: meta.Timeframe,
		}
	}
	return out
}

func flatCandles(n int) []candle.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	for i := range out {
		out[i] = candle.Candle{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      100, High: 100, Low: 100, Close: 100,
			Volume:    1000,
			Symbol:    meta.Pair,
			Timeframe: meta.Timeframe,
		}
	}
	return out
}

func column(t *testing.T, f *frame.Frame, name string) []float64 {
	t.Helper()
	v, err := f.Float(name)
	require.NoError(t, err, name)
	return v
}

func firstDefined(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

var expandAllColumns = []string{
	frame.RSI, frame.MFI, frame.ADX, frame.SMA, frame.EMA,
	frame.BBLower, frame.BBMiddle, frame.BBUpper, frame.BBWidth,
	frame.CloseToBBLower, frame.ROC, frame.RelativeVolume,
}

func TestExpandAll_Columns(t *testing.T) {
	f := frame.FromCandles(randomCandles(120, 1))
	require.NoError(t, ExpandAll(f, 14, meta))
	assert.True(t, f.Has(expandAllColumns...))
	assert.Equal(t, 120, f.Len())

	warmup := map[string]int{
		frame.RSI:            14,
		frame.MFI:            14,
		frame.ADX:            27,
		frame.SMA:            13,
		frame.EMA:            13,
		frame.BBLower:        13,
		frame.BBMiddle:       13,
		frame.BBUpper:        13,
		frame.ROC:            14,
		frame.RelativeVolume: 13,
	}
	for name, first := range warmup {
		assert.Equal(t, first, firstDefined(column(t, f, name)), name)
	}
}

func TestExpandAll_InvalidPeriod(t *testing.T) {
	f := frame.FromCandles(randomCandles(20, 1))
	assert.ErrorIs(t, ExpandAll(f, 1, meta), ErrInvalidPeriod)
	assert.ErrorIs(t, Refresh(f, 0, meta), ErrInvalidPeriod)
}

func TestExpandAll_MissingColumn(t *testing.T) {
	f := frame.FromCandles(randomCandles(20, 1))
	f.Drop(frame.Volume)
	assert.ErrorIs(t, ExpandAll(f, 14, meta), frame.ErrMissingColumn)
	assert.ErrorIs(t, ExpandBasic(f, meta), frame.ErrMissingColumn)
}

func TestExpandAll_Bounds(t *testing.T) {
	f := frame.FromCandles(randomCandles(500, 2))
	require.NoError(t, ExpandAll(f, 14, meta))
	for _, name := range []string{frame.RSI, frame.ADX, frame.MFI} {
		for i, v := range column(t, f, name) {
			if math.IsNaN(v) {
				continue
			}
			assert.GreaterOrEqual(t, v, 0.0, "%s at %d", name, i)
			assert.LessOrEqual(t, v, 100.0, "%s at %d", name, i)
		}
	}
}

func TestExpandAll_BollingerIdentities(t *testing.T) {
	f := frame.FromCandles(randomCandles(200, 3))
	require.NoError(t, ExpandAll(f, 14, meta))
	high, low, closes := column(t, f, frame.High), column(t, f, frame.Low), column(t, f, frame.Close)
	lower, mid, upper := column(t, f, frame.BBLower), column(t, f, frame.BBMiddle), column(t, f, frame.BBUpper)
	width := column(t, f, frame.BBWidth)
	ratio := column(t, f, frame.CloseToBBLower)

	for i := 13; i < f.Len(); i++ {
		var sum float64
		for j := i - 13; j <= i; j++ {
			sum += (high[j] + low[j] + closes[j]) / 3
		}
		assert.InDelta(t, sum/14, mid[i], 1e-9)
		assert.InDelta(t, upper[i]-mid[i], mid[i]-lower[i], 1e-9)
		assert.InDelta(t, (upper[i]-lower[i])/mid[i], width[i], 1e-12)
		assert.InDelta(t, closes[i]/lower[i], ratio[i], 1e-12)
	}
}

func TestExpandAll_Idempotent(t *testing.T) {
	f := frame.FromCandles(randomCandles(150, 4))
	require.NoError(t, ExpandAll(f, 14, meta))
	first := make(map[string][]float64)
	for _, name := range expandAllColumns {
		first[name] = column(t, f, name)
	}
	names := f.Names()

	require.NoError(t, ExpandAll(f, 14, meta))
	assert.Equal(t, names, f.Names())
	for _, name := range expandAllColumns {
		again := column(t, f, name)
		for i := range again {
			if math.IsNaN(first[name][i]) {
				assert.True(t, math.IsNaN(again[i]), "%s at %d", name, i)
				continue
			}
			assert.Equal(t, first[name][i], again[i], "%s at %d", name, i)
		}
	}
}

func TestExpandAll_ConstantVolume(t *testing.T) {
	candles := randomCandles(100, 5)
	for i := range candles {
		candles[i].Volume = 750
	}
	f := frame.FromCandles(candles)
	require.NoError(t, ExpandAll(f, 14, meta))
	for i, v := range column(t, f, frame.RelativeVolume) {
		if i < 13 {
			assert.True(t, math.IsNaN(v))
			continue
		}
		assert.InDelta(t, 1.0, v, 1e-12, "index %d", i)
	}
}

func TestExpandAll_FlatSeries(t *testing.T) {
	f := frame.FromCandles(flatCandles(100))
	require.NoError(t, ExpandAll(f, 14, meta))
	for i, v := range column(t, f, frame.RSI) {
		if i < 14 {
			assert.True(t, math.IsNaN(v))
			continue
		}
		assert.Equal(t, 50.0, v, "index %d", i)
	}
	for i, v := range column(t, f, frame.ADX) {
		if i < 27 {
			assert.True(t, math.IsNaN(v))
			continue
		}
		assert.InDelta(t, 0.0, v, 1e-9, "index %d", i)
	}
}

func TestExpandAll_ZeroVolumeIsUndefined(t *testing.T) {
	candles := randomCandles(40, 6)
	for i := range candles {
		candles[i].Volume = 0
	}
	f := frame.FromCandles(candles)
	require.NoError(t, ExpandAll(f, 14, meta))
	for _, v := range column(t, f, frame.RelativeVolume) {
		assert.True(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestExpandBasic(t *testing.T) {
	candles := randomCandles(5, 7)
	f := frame.FromCandles(candles)
	require.NoError(t, ExpandBasic(f, meta))

	pct := column(t, f, frame.PctChange)
	assert.True(t, math.IsNaN(pct[0]))
	for i := 1; i < len(candles); i++ {
		assert.InDelta(t, candles[i].Close/candles[i-1].Close-1, pct[i], 1e-12)
	}
	assert.Equal(t, column(t, f, frame.Volume), column(t, f, frame.RawVolume))
	assert.Equal(t, column(t, f, frame.Close), column(t, f, frame.RawPrice))
}

func TestStandard(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),  // Friday
		time.Date(2024, 3, 3, 23, 55, 0, 0, time.UTC), // Sunday
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),   // Monday
		time.Date(2024, 3, 4, 3, 30, 0, 0, time.FixedZone("IRST", 12600)),
	}
	f := frame.New(dates)
	require.NoError(t, Standard(f, meta))
	assert.Equal(t, []float64{4, 6, 0, 0}, column(t, f, frame.DayOfWeek))
	assert.Equal(t, []float64{10, 23, 0, 0}, column(t, f, frame.HourOfDay))
}

func TestRefresh_RestoresDroppedColumns(t *testing.T) {
	f := frame.FromCandles(randomCandles(120, 8))
	require.NoError(t, ExpandAll(f, 14, meta))
	want := make(map[string][]float64)
	refreshed := []string{frame.ADX, frame.BBLower, frame.BBUpper, frame.RSI, frame.RelativeVolume}
	for _, name := range refreshed {
		want[name] = column(t, f, name)
	}

	f.Drop(frame.ADX, frame.BBLower, frame.RSI)
	require.NoError(t, f.SetFloat(frame.BBUpper, make([]float64, f.Len())))
	require.NoError(t, Refresh(f, 14, meta))

	for _, name := range refreshed {
		got := column(t, f, name)
		for i := range got {
			if math.IsNaN(want[name][i]) {
				assert.True(t, math.IsNaN(got[i]), "%s at %d", name, i)
				continue
			}
			assert.Equal(t, want[name][i], got[i], "%s at %d", name, i)
		}
	}
}
