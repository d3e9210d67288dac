// Package technical turns price and candle arrays into indicator series and
// structural price levels. Every function is pure; undefined entries are NaN.
package technical

import (
	"math"

	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------

// undefinedSeries returns n NaN entries.
func undefinedSeries(n int) models.MSeries {
	out := make(models.MSeries, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// -----------------------------------------------------------------------------

// firstDefined returns the index of the first non-NaN entry, len(data) if none.
func firstDefined(data []float64) int {
	for i, v := range data {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(data)
}

// -----------------------------------------------------------------------------

// SMA calculates the sliding-window arithmetic mean. The output is aligned to
// data; entries 0..period-2 are undefined, as is any window holding a NaN.
func SMA(data []float64, period int) models.MSeries {
	out := undefinedSeries(len(data))
	if period <= 0 || len(data) < period {
		return out
	}

	for i := period - 1; i < len(data); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += data[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// -----------------------------------------------------------------------------

// EMA calculates the Exponential Moving Average, seeded by the SMA of the first
// period defined points, then ema[i] = (data[i]-ema[i-1])*k + ema[i-1] with
// k = 2/(period+1). Leading NaNs in data are skipped.
func EMA(data []float64, period int) models.MSeries {
	out := undefinedSeries(len(data))
	if period <= 0 {
		return out
	}

	start := firstDefined(data)
	seed := start + period - 1
	if seed >= len(data) {
		return out
	}

	sum := 0.0
	for i := start; i <= seed; i++ {
		sum += data[i]
	}
	out[seed] = sum / float64(period)

	k := 2.0 / float64(period+1)
	for i := seed + 1; i < len(data); i++ {
		out[i] = (data[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// -----------------------------------------------------------------------------

// subtract returns a-b element-wise; NaN propagates.
func subtract(a, b []float64) models.MSeries {
	out := make(models.MSeries, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
