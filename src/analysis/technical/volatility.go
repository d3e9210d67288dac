package technical

import (
	"math"

	"market-analytics/src/analysis/core"
	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------

// Bollinger calculates middle = SMA(period) and upper/lower = middle ± k·σ,
// σ being the population standard deviation of the same window.
func Bollinger(data []float64, period int, k float64) models.MBollingerBands {
	middle := SMA(data, period)
	upper := undefinedSeries(len(data))
	lower := undefinedSeries(len(data))

	for i := range data {
		if math.IsNaN(middle[i]) {
			continue
		}
		_, std := core.CalculateMeanStd(data[i-period+1 : i+1])
		upper[i] = middle[i] + k*std
		lower[i] = middle[i] - k*std
	}

	return models.MBollingerBands{Upper: upper, Middle: middle, Lower: lower}
}

// -----------------------------------------------------------------------------

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) for every
// candle after the first; length len(candles)-1.
func TrueRange(candles []models.MCandle) []float64 {
	if len(candles) < 2 {
		return []float64{}
	}

	out := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high, low, prevClose := candles[i].High, candles[i].Low, candles[i-1].Close
		out[i-1] = math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
	}
	return out
}

// -----------------------------------------------------------------------------

// ATR calculates the Wilder-smoothed Average True Range. Like RSI it has one
// entry per candle after the first; the first period-1 entries are undefined.
func ATR(candles []models.MCandle, period int) models.MSeries {
	tr := TrueRange(candles)
	out := undefinedSeries(len(tr))
	if period <= 0 || len(tr) < period {
		return out
	}

	out[period-1] = core.Mean(tr[:period])
	p := float64(period)
	for i := period; i < len(tr); i++ {
		out[i] = (out[i-1]*(p-1) + tr[i]) / p
	}
	return out
}
