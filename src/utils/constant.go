package utils

import "math"

// -----------------------------------------------------------------------------

// Market conventions shared by the analysis and data layers.
const (
	TradingDaysPerYear = 252
	DefaultTickHistory = 500
	DefaultErrorLogCap = 100
)

// -----------------------------------------------------------------------------

// AnnualizationFactor is the multiplier applied to a daily standard deviation.
func AnnualizationFactor() float64 {
	return math.Sqrt(TradingDaysPerYear)
}
