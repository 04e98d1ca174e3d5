package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// talib fills the lookback region with zeros; these wrappers replace it with
// NaN so that warm-up rows are never mistaken for real readings.

// SMA is the simple moving average of src over period.
func SMA(src []float64, period int) []float64 {
	lookback := period - 1
	if period < 1 || len(src) <= lookback {
		return nanSlice(len(src))
	}
	return mask(talib.Sma(src, period), lookback)
}

// EMA is the exponential moving average of src over period, seeded with the
// SMA of the first window.
func EMA(src []float64, period int) []float64 {
	lookback := period - 1
	if period < 1 || len(src) <= lookback {
		return nanSlice(len(src))
	}
	return mask(talib.Ema(src, period), lookback)
}

// ROC is the rate of change in percent: ((src[i] / src[i-period]) - 1) * 100.
func ROC(src []float64, period int) []float64 {
	if period < 1 || len(src) <= period {
		return nanSlice(len(src))
	}
	out := mask(talib.Roc(src, period), period)
	for i := period; i < len(src); i++ {
		if src[i-period] == 0 || Undefined(src[i-period]) {
			out[i] = math.NaN()
		}
	}
	return out
}

// MFI is the money flow index over period. Values lie in [0, 100].
func MFI(high, low, close, volume []float64, period int) []float64 {
	if period < 1 || len(close) <= period || !sameLength(high, low, close, volume) {
		return nanSlice(len(close))
	}
	return mask(talib.Mfi(high, low, close, volume, period), period)
}

// ADX is the average directional index over period. The first defined value is
// at index 2*period-1. A series without directional movement yields 0.
func ADX(high, low, close []float64, period int) []float64 {
	lookback := 2*period - 1
	if period < 1 || len(close) <= lookback || !sameLength(high, low, close) {
		return nanSlice(len(close))
	}
	return mask(talib.Adx(high, low, close, period), lookback)
}

// TypicalPrice returns (high + low + close) / 3 per row.
func TypicalPrice(high, low, close []float64) []float64 {
	if !sameLength(high, low, close) {
		return nanSlice(len(close))
	}
	if len(close) == 0 {
		return []float64{}
	}
	return talib.TypPrice(high, low, close)
}

func mask(values []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(values); i++ {
		values[i] = math.NaN()
	}
	return values
}

func sameLength(series ...[]float64) bool {
	for _, s := range series[1:] {
		if len(s) != len(series[0]) {
			return false
		}
	}
	return true
}
