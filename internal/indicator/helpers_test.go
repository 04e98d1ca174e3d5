package indicator

import (
	"math"
	"math/rand"
)

// syntheticWalk returns a positive random walk of n closes.
func syntheticWalk(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	price := 100.0
	for i := range out {
		price *= 1 + (r.Float64()-0.5)*0.04
		out[i] = price
	}
	return out
}

// syntheticOHLCV builds high/low/close/volume series around a random walk.
func syntheticOHLCV(n int, seed int64) (high, low, close, volume []float64) {
	r := rand.New(rand.NewSource(seed + 1))
	close = syntheticWalk(n, seed)
	high = make([]float64, n)
	low = make([]float64, n)
	volume = make([]float64, n)
	for i, c := range close {
		spread := c * 0.01 * (r.Float64() + 0.1)
		high[i] = c + spread
		low[i] = c - spread
		volume[i] = 1000 + math.Floor(r.Float64()*5000)
	}
	return high, low, close, volume
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
