package indicator

import (
	"math"
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRSI(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name     string
		prices   []float64
		period   int
		expected []float64
	}{
		{
			name:     "wilder smoothing",
			prices:   []float64{10, 11, 12, 11, 10, 9, 10, 11, 12, 13, 14, 13, 12, 11, 12},
			period:   5,
			expected: []float64{nan, nan, nan, nan, nan, 40.00, 52.00, 61.60, 69.28, 75.42, 80.34, 64.27, 51.42, 41.13, 52.91},
		},
		{
			name:     "only gains",
			prices:   []float64{10, 11, 12, 13, 14, 15},
			period:   3,
			expected: []float64{nan, nan, nan, 100, 100, 100},
		},
		{
			name:     "only losses",
			prices:   []float64{20, 19, 18, 17, 16},
			period:   3,
			expected: []float64{nan, nan, nan, 0, 0},
		},
		{
			name:     "flat window is neutral",
			prices:   []float64{10, 10, 10, 10, 10, 10},
			period:   3,
			expected: []float64{nan, nan, nan, 50, 50, 50},
		},
		{
			name:     "alternating",
			prices:   []float64{10, 11, 10, 11, 10, 11, 10, 11, 10},
			period:   2,
			expected: []float64{nan, nan, 50.00, 75.00, 37.50, 68.75, 34.38, 67.19, 33.59},
		},
		{
			name:     "shorter than the window",
			prices:   []float64{10, 11, 12},
			period:   5,
			expected: []float64{nan, nan, nan},
		},
		{
			name:     "undefined price",
			prices:   []float64{10, 11, nan, 13, 14, 15},
			period:   2,
			expected: []float64{nan, nan, nan, nan, nan, nan},
		},
		{
			name:     "empty",
			prices:   []float64{},
			period:   5,
			expected: []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateRSI(tt.prices, tt.period)
			require.Len(t, result, len(tt.expected))
			for i, want := range tt.expected {
				if math.IsNaN(want) {
					assert.True(t, math.IsNaN(result[i]), "expected NaN at %d", i)
					continue
				}
				assert.InDelta(t, want, result[i], 0.01, "RSI at %d", i)
			}
		})
	}
}

func TestCalculateRSI_InvalidPeriod(t *testing.T) {
	assert.Nil(t, CalculateRSI([]float64{10, 11, 12}, 0))
	assert.Nil(t, CalculateRSI([]float64{10, 11, 12}, -3))
}

func TestCalculateRSI_WarmUpEndsAtPeriod(t *testing.T) {
	prices := syntheticWalk(60, 3)
	for _, period := range []int{2, 5, 14, 30} {
		rsi := CalculateRSI(prices, period)
		for i := 0; i < period; i++ {
			assert.True(t, math.IsNaN(rsi[i]), "period %d: index %d must be warm-up", period, i)
		}
		assert.False(t, math.IsNaN(rsi[period]), "period %d: first reading at index %d", period, period)
	}
}

func TestCalculateRSI_MatchesTalib(t *testing.T) {
	prices := syntheticWalk(500, 11)
	for _, period := range []int{5, 14} {
		ours := CalculateRSI(prices, period)
		ref := talib.Rsi(prices, period)
		require.Len(t, ref, len(ours))
		for i := period; i < len(prices); i++ {
			assert.InDelta(t, ref[i], ours[i], 1e-9, "period %d at %d", period, i)
		}
	}
}

func TestCalculateRSI_Bounds(t *testing.T) {
	prices := syntheticWalk(300, 7)
	for i, v := range CalculateRSI(prices, 14) {
		if math.IsNaN(v) {
			assert.Less(t, i, 14, "RSI undefined after warm-up at %d", i)
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func BenchmarkCalculateRSI(b *testing.B) {
	prices := syntheticWalk(1000, 1)
	for b.Loop() {
		_ = CalculateRSI(prices, 14)
	}
}
