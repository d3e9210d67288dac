package portfolio

import (
	"sort"

	"market-analytics/src/analysis/core"
	"market-analytics/src/models"
)

const secondsPerDay = 86400

// dayKey truncates a unix-second timestamp to its UTC calendar day.
func dayKey(ts int64) int64 {
	return ts - ((ts%secondsPerDay)+secondsPerDay)%secondsPerDay
}

// -----------------------------------------------------------------------------

// DatedReturn is a return realized on Day (unix seconds, UTC midnight).
type DatedReturn struct {
	Day    int64
	Return float64
}

// -----------------------------------------------------------------------------

// PortfolioValues sums quantity × close across positions for every day present
// in any series. A symbol without a candle on a day contributes nothing to
// that day's sum.
func PortfolioValues(positions []models.MPosition, history map[string][]models.MCandle) ([]int64, []float64) {
	totals := make(map[int64]float64)
	for _, p := range positions {
		for _, c := range history[p.Symbol] {
			totals[dayKey(c.Timestamp)] += p.Quantity * c.Close
		}
	}

	days := make([]int64, 0, len(totals))
	for d := range totals {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	values := make([]float64, len(days))
	for i, d := range days {
		values[i] = totals[d]
	}
	return days, values
}

// -----------------------------------------------------------------------------

// DailyReturns is the day-over-day percentage change of PortfolioValues.
func DailyReturns(positions []models.MPosition, history map[string][]models.MCandle) []DatedReturn {
	days, values := PortfolioValues(positions, history)
	return datedChanges(days, values)
}

// -----------------------------------------------------------------------------

// SymbolReturns returns the close-to-close returns of one series keyed by day.
func SymbolReturns(candles []models.MCandle) []DatedReturn {
	sorted := make([]models.MCandle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	days := make([]int64, len(sorted))
	values := make([]float64, len(sorted))
	for i, c := range sorted {
		days[i] = dayKey(c.Timestamp)
		values[i] = c.Close
	}
	return datedChanges(days, values)
}

// -----------------------------------------------------------------------------

func datedChanges(days []int64, values []float64) []DatedReturn {
	if len(values) < 2 {
		return []DatedReturn{}
	}
	changes := core.PercentChanges(values)
	out := make([]DatedReturn, len(changes))
	for i, r := range changes {
		out[i] = DatedReturn{Day: days[i+1], Return: r}
	}
	return out
}

// -----------------------------------------------------------------------------

// Values strips the dates.
func Values(returns []DatedReturn) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = r.Return
	}
	return out
}

// -----------------------------------------------------------------------------

// Align returns the values of a and b on the days both carry a return.
func Align(a, b []DatedReturn) ([]float64, []float64) {
	byDay := make(map[int64]float64, len(b))
	for _, r := range b {
		byDay[r.Day] = r.Return
	}

	var xa, xb []float64
	for _, r := range a {
		if v, ok := byDay[r.Day]; ok {
			xa = append(xa, r.Return)
			xb = append(xb, v)
		}
	}
	return xa, xb
}
