package core

import (
	"math"
	"sort"
)

// -----------------------------------------------------------------------------

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and population standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	mean := Mean(data)
	if len(data) == 1 {
		return mean, 0
	}

	// N denominator (population std)
	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(varianceSum / float64(len(data)))
}

// -----------------------------------------------------------------------------

// Covariance computes the population covariance of two equal-length series.
func Covariance(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	meanX, meanY := Mean(x), Mean(y)
	sum := 0.0
	for i := range x {
		sum += (x[i] - meanX) * (y[i] - meanY)
	}
	return sum / float64(len(x))
}

// -----------------------------------------------------------------------------

// CalculateCorrelation computes Pearson correlation coefficient.
func CalculateCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	_, stdX := CalculateMeanStd(x)
	_, stdY := CalculateMeanStd(y)
	if stdX == 0 || stdY == 0 {
		return 0
	}

	result := Covariance(x, y) / (stdX * stdY)
	if math.IsNaN(result) {
		return 0
	}

	// rounding can push |r| slightly past 1
	return math.Max(-1, math.Min(1, result))
}

// -----------------------------------------------------------------------------

// LinearRegression fits y = alpha + beta*x by least squares.
func LinearRegression(x, y []float64) (alpha, beta float64) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, 0
	}

	varX := Covariance(x, x)
	if varX == 0 {
		return Mean(y), 0
	}

	beta = Covariance(x, y) / varX
	alpha = Mean(y) - beta*Mean(x)
	return alpha, beta
}

// -----------------------------------------------------------------------------

// DownsideDeviation is the root mean square of returns below target.
func DownsideDeviation(data []float64, target float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range data {
		if v < target {
			sum += (v - target) * (v - target)
		}
	}
	return math.Sqrt(sum / float64(len(data)))
}

// -----------------------------------------------------------------------------

// SortedCopy returns an ascending copy of data.
func SortedCopy(data []float64) []float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return sorted
}

// -----------------------------------------------------------------------------

// EmpiricalQuantile returns the element at index floor(q*n) of the ascending
// sort of data, clamped to the valid range.
func EmpiricalQuantile(data []float64, q float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := SortedCopy(data)
	idx := int(math.Floor(q * float64(len(sorted))))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
