package technical

import (
	"math"

	"market-analytics/src/models"
)

// Default periods
const (
	DefaultRSIPeriod        = 14
	DefaultMACDFast         = 12
	DefaultMACDSlow         = 26
	DefaultMACDSignal       = 9
	DefaultStochasticK      = 14
	DefaultStochasticD      = 3
	DefaultBollingerPeriod  = 20
	DefaultBollingerStdDevs = 2.0
	DefaultATRPeriod        = 14
)

// -----------------------------------------------------------------------------

// rsiValue clamps a zero loss average to 100.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// -----------------------------------------------------------------------------

// RSI calculates the Wilder-smoothed Relative Strength Index. The output has
// one entry per price difference, len(data)-1, so entry j describes the move
// into data[j+1]. The first period-1 entries are undefined.
func RSI(data []float64, period int) models.MSeries {
	if len(data) < 2 {
		return models.MSeries{}
	}

	out := undefinedSeries(len(data) - 1)
	if period <= 0 || len(data)-1 < period {
		return out
	}

	var avgGain, avgLoss float64
	for j := 0; j < period; j++ {
		change := data[j+1] - data[j]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period-1] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for j := period; j < len(out); j++ {
		change := data[j+1] - data[j]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[j] = rsiValue(avgGain, avgLoss)
	}
	return out
}

// -----------------------------------------------------------------------------

// MACD calculates line = EMA(fast) - EMA(slow), signal = EMA(line, signal) and
// histogram = line - signal, all aligned to data.
func MACD(data []float64, fast, slow, signal int) models.MMACD {
	line := subtract(EMA(data, fast), EMA(data, slow))
	signalLine := EMA(line, signal)
	return models.MMACD{
		Line:      line,
		Signal:    signalLine,
		Histogram: subtract(line, signalLine),
	}
}

// -----------------------------------------------------------------------------

// Stochastic calculates %K = 100*(close-lowestLow)/(highestHigh-lowestLow) over
// kPeriod and %D = SMA(%K, dPeriod). A flat window yields 50.
func Stochastic(candles []models.MCandle, kPeriod, dPeriod int) models.MStochastic {
	k := undefinedSeries(len(candles))
	if kPeriod > 0 && len(candles) >= kPeriod {
		for i := kPeriod - 1; i < len(candles); i++ {
			lowest, highest := math.Inf(1), math.Inf(-1)
			for j := i - kPeriod + 1; j <= i; j++ {
				lowest = math.Min(lowest, candles[j].Low)
				highest = math.Max(highest, candles[j].High)
			}
			if highest == lowest {
				k[i] = 50
				continue
			}
			k[i] = 100 * (candles[i].Close - lowest) / (highest - lowest)
		}
	}
	return models.MStochastic{K: k, D: SMA(k, dPeriod)}
}
