package indicator

// BollingerBands holds the three band series aligned with the source.
type BollingerBands struct {
	Lower []float64
	Mid   []float64
	Upper []float64
}

// Bollinger computes bands around the rolling mean of src. The band half-width
// is stds times the rolling sample standard deviation.
func Bollinger(src []float64, window int, stds float64) BollingerBands {
	mid := RollingMean(src, window)
	dev := RollingStdDev(src, window)
	bands := BollingerBands{
		Lower: nanSlice(len(src)),
		Mid:   mid,
		Upper: nanSlice(len(src)),
	}
	for i := range src {
		if Undefined(mid[i]) || Undefined(dev[i]) {
			continue
		}
		bands.Lower[i] = mid[i] - stds*dev[i]
		bands.Upper[i] = mid[i] + stds*dev[i]
	}
	return bands
}

// Width returns (upper - lower) / mid per row.
func (b BollingerBands) Width() []float64 {
	out := nanSlice(len(b.Mid))
	for i := range b.Mid {
		out[i] = safeDiv(b.Upper[i]-b.Lower[i], b.Mid[i])
	}
	return out
}
