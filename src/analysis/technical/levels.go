package technical

import (
	"math"
	"sort"

	"market-analytics/src/models"
)

var (
	FibonacciRetracementRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}
	FibonacciExtensionRatios   = []float64{1.272, 1.618, 2.618, 3.618, 4.236}
)

// -----------------------------------------------------------------------------

// PivotPoints computes the classic floor-trader levels from one prior bar.
func PivotPoints(high, low, closePrice float64) models.MPivotPoints {
	pivot := (high + low + closePrice) / 3
	return models.MPivotPoints{
		Pivot: pivot,
		R1:    2*pivot - low,
		S1:    2*pivot - high,
		R2:    pivot + (high - low),
		S2:    pivot - (high - low),
		R3:    high + 2*(pivot-low),
		S3:    low - 2*(high-pivot),
	}
}

// -----------------------------------------------------------------------------

// Fibonacci computes retracements measured down from the high and extensions
// projected from the low beyond the high.
func Fibonacci(high, low float64) models.MFibonacciLevels {
	diff := high - low

	levels := models.MFibonacciLevels{
		Retracements: make([]models.MFibonacciLevel, len(FibonacciRetracementRatios)),
		Extensions:   make([]models.MFibonacciLevel, len(FibonacciExtensionRatios)),
	}
	for i, r := range FibonacciRetracementRatios {
		levels.Retracements[i] = models.MFibonacciLevel{Ratio: r, Price: high - r*diff}
	}
	for i, r := range FibonacciExtensionRatios {
		levels.Extensions[i] = models.MFibonacciLevel{Ratio: r, Price: low + r*diff}
	}
	return levels
}

// -----------------------------------------------------------------------------

// swingPoints returns indices of local highs and lows: bars whose high (low)
// is strictly above (below) the `window` bars on each side.
func swingPoints(candles []models.MCandle, window int) (highs, lows []int) {
	for i := window; i < len(candles)-window; i++ {
		isHigh, isLow := true, true
		for j := i - window; j <= i+window; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, i)
		}
		if isLow {
			lows = append(lows, i)
		}
	}
	return highs, lows
}

// -----------------------------------------------------------------------------

type priceCluster struct {
	sum     float64
	touches int
}

// clusterPrices groups prices lying within tolerance (relative) of a running
// cluster mean.
func clusterPrices(prices []float64, tolerance float64) []priceCluster {
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	var clusters []priceCluster
	for _, p := range sorted {
		if n := len(clusters); n > 0 {
			c := &clusters[n-1]
			mean := c.sum / float64(c.touches)
			if math.Abs(p-mean) <= tolerance*mean {
				c.sum += p
				c.touches++
				continue
			}
		}
		clusters = append(clusters, priceCluster{sum: p, touches: 1})
	}
	return clusters
}

// -----------------------------------------------------------------------------

// SupportResistance finds levels by clustering swing lows (support) and swing
// highs (resistance) within tolerance. Strength is the share of swings of that
// type falling into the cluster. Levels are sorted by strength, strongest first.
func SupportResistance(candles []models.MCandle, window int, tolerance float64) []models.MPriceLevel {
	if window <= 0 {
		window = 2
	}
	if tolerance <= 0 {
		tolerance = 0.01
	}

	highIdx, lowIdx := swingPoints(candles, window)
	levels := make([]models.MPriceLevel, 0)

	build := func(kind string, idx []int, price func(models.MCandle) float64) {
		if len(idx) == 0 {
			return
		}
		prices := make([]float64, len(idx))
		for i, k := range idx {
			prices[i] = price(candles[k])
		}
		for _, c := range clusterPrices(prices, tolerance) {
			levels = append(levels, models.MPriceLevel{
				Type:     kind,
				Price:    c.sum / float64(c.touches),
				Strength: float64(c.touches) / float64(len(idx)),
				Touches:  c.touches,
			})
		}
	}
	build("support", lowIdx, func(c models.MCandle) float64 { return c.Low })
	build("resistance", highIdx, func(c models.MCandle) float64 { return c.High })

	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Strength != levels[j].Strength {
			return levels[i].Strength > levels[j].Strength
		}
		return levels[i].Touches > levels[j].Touches
	})
	return levels
}
