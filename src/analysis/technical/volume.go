package technical

import (
	"math"

	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------

// OBV calculates On-Balance Volume starting at 0: volume is added on up-closes,
// subtracted on down-closes and ignored on flat closes.
func OBV(candles []models.MCandle) models.MSeries {
	out := make(models.MSeries, len(candles))
	for i := 1; i < len(candles); i++ {
		out[i] = out[i-1]
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] += candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			out[i] -= candles[i].Volume
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// VWAP calculates the cumulative volume-weighted typical price (H+L+C)/3.
// Entries are undefined until some volume has traded.
func VWAP(candles []models.MCandle) models.MSeries {
	out := make(models.MSeries, len(candles))
	var pv, vol float64
	for i, c := range candles {
		pv += (c.High + c.Low + c.Close) / 3 * c.Volume
		vol += c.Volume
		if vol == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = pv / vol
	}
	return out
}
