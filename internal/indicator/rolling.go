package indicator

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RollingMean is the trailing mean of src over window. A window containing an
// undefined value yields NaN.
func RollingMean(src []float64, window int) []float64 {
	out := nanSlice(len(src))
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(src); i++ {
		w := src[i-window+1 : i+1]
		if anyUndefined(w) {
			continue
		}
		out[i] = floats.Sum(w) / float64(window)
	}
	return out
}

// RollingStdDev is the trailing sample standard deviation (n-1 denominator) of
// src over window.
func RollingStdDev(src []float64, window int) []float64 {
	out := nanSlice(len(src))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(src); i++ {
		w := src[i-window+1 : i+1]
		if anyUndefined(w) {
			continue
		}
		_, std := stat.MeanStdDev(w, nil)
		out[i] = std
	}
	return out
}

// Ratio divides num by den element-wise. A zero or undefined denominator, or an
// undefined numerator, yields NaN.
func Ratio(num, den []float64) []float64 {
	out := nanSlice(len(num))
	for i := range num {
		if i >= len(den) {
			break
		}
		out[i] = safeDiv(num[i], den[i])
	}
	return out
}

// PctChange is the lag-1 fractional change of src. The first row is NaN.
func PctChange(src []float64) []float64 {
	out := nanSlice(len(src))
	for i := 1; i < len(src); i++ {
		out[i] = safeDiv(src[i], src[i-1]) - 1
	}
	return out
}

// ForwardMean is the mean of the next n values: mean(src[i+1 .. i+n]). The last
// n rows have no complete forward window and are NaN.
func ForwardMean(src []float64, n int) []float64 {
	out := nanSlice(len(src))
	if n < 1 {
		return out
	}
	for i := 0; i+n < len(src); i++ {
		w := src[i+1 : i+n+1]
		if anyUndefined(w) {
			continue
		}
		out[i] = floats.Sum(w) / float64(n)
	}
	return out
}

// RelativeVolume is volume divided by its trailing mean over window.
func RelativeVolume(volume []float64, window int) []float64 {
	return Ratio(volume, RollingMean(volume, window))
}

func safeDiv(num, den float64) float64 {
	if den == 0 || Undefined(num) || Undefined(den) {
		return math.NaN()
	}
	v := num / den
	if Undefined(v) {
		return math.NaN()
	}
	return v
}
