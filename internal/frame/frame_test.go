package frame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/mlsignal/internal/candle"
)

func testCandles(n int) []candle.Candle {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = candle.Candle{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      p,
			High:      p + 1,
			Low:       p - 1,
			Close:     p + 0.5,
			Volume:    1000 + float64(i),
			Symbol:    "BTC/USDT",
			Timeframe: "5m",
		}
	}
	return out
}

func TestFromCandles(t *testing.T) {
	f := FromCandles(testCandles(3))
	require.Equal(t, 3, f.Len())
	assert.Equal(t, OHLCV, f.Names())
	assert.True(t, f.Has(OHLCV...))
	assert.False(t, f.Has(RSI))

	closes, err := f.Float(Close)
	require.NoError(t, err)
	assert.Equal(t, []float64{100.5, 101.5, 102.5}, closes)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC), f.Date(1))
}

func TestFrame_SetFloatReplaces(t *testing.T) {
	f := FromCandles(testCandles(3))
	require.NoError(t, f.SetFloat(RSI, []float64{math.NaN(), 40, 60}))
	require.NoError(t, f.SetFloat(RSI, []float64{math.NaN(), 45, 65}))

	assert.Len(t, f.Names(), 6)
	got, err := f.Float(RSI)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, []float64{45, 65}, got[1:])

	v, err := f.FloatAt(RSI, 2)
	require.NoError(t, err)
	assert.Equal(t, 65.0, v)

	_, err = f.FloatAt(RSI, 3)
	assert.Error(t, err)
}

func TestFrame_LengthMismatch(t *testing.T) {
	f := FromCandles(testCandles(3))
	err := f.SetFloat(RSI, []float64{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.ErrorIs(t, f.SetInt(EnterLong, []int{1}), ErrLengthMismatch)
	assert.ErrorIs(t, f.SetString(EnterTag, nil), ErrLengthMismatch)
}

func TestFrame_MissingColumn(t *testing.T) {
	f := FromCandles(testCandles(2))
	_, err := f.Float(ADX)
	assert.ErrorIs(t, err, ErrMissingColumn)
	_, err = f.Int(EnterLong)
	assert.ErrorIs(t, err, ErrMissingColumn)
	_, err = f.String(EnterTag)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestFrame_IntAndString(t *testing.T) {
	f := FromCandles(testCandles(3))
	require.NoError(t, f.SetInt(EnterLong, []int{0, 1, 0}))
	require.NoError(t, f.SetString(EnterTag, []string{"", "long", ""}))

	flags, err := f.Int(EnterLong)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, flags)

	tags, err := f.String(EnterTag)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "long", ""}, tags)
}

func TestFrame_CopyIsIndependent(t *testing.T) {
	f := FromCandles(testCandles(3))
	c := f.Copy()
	require.NoError(t, c.SetFloat(Close, []float64{1, 2, 3}))
	require.NoError(t, c.SetFloat(ADX, []float64{1, 2, 3}))

	closes, err := f.Float(Close)
	require.NoError(t, err)
	assert.Equal(t, []float64{100.5, 101.5, 102.5}, closes)
	assert.False(t, f.Has(ADX))
}

func TestFrame_Drop(t *testing.T) {
	f := FromCandles(testCandles(2))
	require.NoError(t, f.SetFloat(ADX, []float64{1, 2}))
	f.Drop(ADX, "unknown")
	assert.Equal(t, OHLCV, f.Names())

	f.Drop(OHLCV...)
	assert.Empty(t, f.Names())
	require.NoError(t, f.SetFloat(Close, []float64{3, 4}))
	assert.Equal(t, []string{Close}, f.Names())
}

func TestFrame_Columns(t *testing.T) {
	f := FromCandles(testCandles(2))
	require.NoError(t, f.SetFloat(RSI, []float64{1, 2}))
	require.NoError(t, f.SetFloat(ADX, []float64{1, 2}))
	require.NoError(t, f.SetFloat(Target, []float64{1, 2}))
	assert.Equal(t, []string{ADX, RSI}, f.Columns(FeaturePrefix))
	assert.Equal(t, []string{Target}, f.Columns(TargetPrefix))
}

func TestFrame_DataFrame(t *testing.T) {
	f := FromCandles(testCandles(2))
	df := f.DataFrame()
	require.NoError(t, df.Err)
	assert.Equal(t, append([]string{Date}, OHLCV...), df.Names())
	assert.Equal(t, "2024-03-01T10:00:00Z", df.Col(Date).Records()[0])
}

func TestNew_Empty(t *testing.T) {
	f := New(nil)
	assert.Equal(t, 0, f.Len())
	assert.Empty(t, f.Names())
	assert.False(t, f.Has(Close))
}
