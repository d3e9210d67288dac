package core

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates fractional change (0.05 means +5%).
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous
}

// -----------------------------------------------------------------------------

// PercentChanges returns day-over-day fractional changes of values. A zero
// base yields a zero return for that step. Output length is len(values)-1.
func PercentChanges(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = CalculateChangePercent(values[i], values[i-1])
	}
	return out
}

// -----------------------------------------------------------------------------

// CompoundedValues turns a return series into a value path starting at 1.
// The starting point is not included.
func CompoundedValues(returns []float64) []float64 {
	out := make([]float64, len(returns))
	value := 1.0
	for i, r := range returns {
		value *= 1 + r
		out[i] = value
	}
	return out
}

// -----------------------------------------------------------------------------

// Drawdowns returns the drawdown path (value-peak)/peak of the compounded
// returns, with the running peak seeded at 1.
func Drawdowns(returns []float64) []float64 {
	values := CompoundedValues(returns)
	out := make([]float64, len(values))
	peak := 1.0
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = (v - peak) / peak
		}
	}
	return out
}
