package indicator

// neutralRSI is reported when a window has neither gains nor losses.
const neutralRSI = 50

// CalculateRSI computes Wilder's RSI. The first value is defined at index
// period (period price changes are needed to seed the averages). It returns
// nil for a non-positive period.
func CalculateRSI(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	rsi := nanSlice(len(prices))
	if len(prices) <= period || anyUndefined(prices) {
		return rsi
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	rsi[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss = 0, 0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		rsi[i] = rsiValue(avgGain, avgLoss)
	}
	return rsi
}

func rsiValue(avgGain, avgLoss float64) float64 {
	total := avgGain + avgLoss
	if total == 0 {
		return neutralRSI
	}
	return 100 * avgGain / total
}
