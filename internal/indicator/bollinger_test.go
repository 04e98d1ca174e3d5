package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBollinger_Identities(t *testing.T) {
	high, low, close, _ := syntheticOHLCV(200, 21)
	tp := TypicalPrice(high, low, close)
	window := 14
	bands := Bollinger(tp, window, 2.2)
	mean := RollingMean(tp, window)
	dev := RollingStdDev(tp, window)

	require.Len(t, bands.Mid, len(tp))
	for i := range tp {
		if i < window-1 {
			assert.True(t, math.IsNaN(bands.Lower[i]))
			assert.True(t, math.IsNaN(bands.Mid[i]))
			assert.True(t, math.IsNaN(bands.Upper[i]))
			continue
		}
		assert.InDelta(t, mean[i], bands.Mid[i], 1e-9)
		assert.InDelta(t, bands.Mid[i]+2.2*dev[i], bands.Upper[i], 1e-9)
		assert.InDelta(t, bands.Mid[i]-2.2*dev[i], bands.Lower[i], 1e-9)
		assert.LessOrEqual(t, bands.Lower[i], bands.Mid[i])
		assert.LessOrEqual(t, bands.Mid[i], bands.Upper[i])
	}
}

func TestBollinger_Width(t *testing.T) {
	bands := BollingerBands{
		Lower: []float64{math.NaN(), 90, 0},
		Mid:   []float64{math.NaN(), 100, 0},
		Upper: []float64{math.NaN(), 110, 0},
	}
	width := bands.Width()
	assert.True(t, math.IsNaN(width[0]))
	assert.InDelta(t, 0.2, width[1], 1e-9)
	assert.True(t, math.IsNaN(width[2]), "zero mid must be undefined")
}

func TestBollinger_FlatSeries(t *testing.T) {
	bands := Bollinger(constant(30, 100), 14, 2.2)
	for i := 13; i < 30; i++ {
		assert.InDelta(t, 100.0, bands.Lower[i], 1e-9)
		assert.InDelta(t, 100.0, bands.Upper[i], 1e-9)
	}
}
