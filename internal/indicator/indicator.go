// Package indicator provides the technical indicators used by feature
// derivation. Every function returns a slice aligned with its input; positions
// without a complete window hold NaN.
package indicator

import "math"

// Undefined reports whether v is NaN or infinite.
func Undefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func anyUndefined(values []float64) bool {
	for _, v := range values {
		if Undefined(v) {
			return true
		}
	}
	return false
}
