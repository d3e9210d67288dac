package portfolio

import (
	"math"

	"market-analytics/src/analysis/core"
	"market-analytics/src/models"
	"market-analytics/src/utils"
)

// StressScenario shocks a return series: Shift is added to every return,
// VolMultiplier scales every return.
type StressScenario struct {
	Name          string
	Description   string
	Shift         float64
	VolMultiplier float64
}

// DefaultStressScenarios are applied on every analysis.
var DefaultStressScenarios = []StressScenario{
	{Name: "market_crash", Description: "parallel shift of -20% on every daily return", Shift: -0.20, VolMultiplier: 1},
	{Name: "rate_hike", Description: "parallel shift of -5% on every daily return", Shift: -0.05, VolMultiplier: 1},
	{Name: "high_volatility", Description: "daily returns scaled 2x", VolMultiplier: 2},
}

// -----------------------------------------------------------------------------

// AnnualizedVolatility is the population std of daily returns × √252.
func AnnualizedVolatility(returns []float64) float64 {
	_, std := core.CalculateMeanStd(returns)
	return std * utils.AnnualizationFactor()
}

// -----------------------------------------------------------------------------

// SharpeRatio is √252 × (mean - rf/252) / volatility, 0 on zero volatility.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	vol := AnnualizedVolatility(returns)
	if len(returns) == 0 || vol == 0 {
		return 0
	}
	return utils.AnnualizationFactor() * (core.Mean(returns) - riskFreeRate/utils.TradingDaysPerYear) / vol
}

// -----------------------------------------------------------------------------

// SortinoRatio mirrors SharpeRatio with the annualized downside deviation
// below zero in the denominator.
func SortinoRatio(returns []float64, riskFreeRate float64) float64 {
	downside := core.DownsideDeviation(returns, 0) * utils.AnnualizationFactor()
	if len(returns) == 0 || downside == 0 {
		return 0
	}
	return utils.AnnualizationFactor() * (core.Mean(returns) - riskFreeRate/utils.TradingDaysPerYear) / downside
}

// -----------------------------------------------------------------------------

// ValueAtRisk returns the empirical 95% and 99% VaR: the returns at the 5th
// and 1st percentile index of the ascending sort.
func ValueAtRisk(returns []float64) (var95, var99 float64) {
	return core.EmpiricalQuantile(returns, 0.05), core.EmpiricalQuantile(returns, 0.01)
}

// -----------------------------------------------------------------------------

// ExpectedShortfall is the mean of the returns at or below cutoff.
func ExpectedShortfall(returns []float64, cutoff float64) float64 {
	var tail []float64
	for _, r := range returns {
		if r <= cutoff {
			tail = append(tail, r)
		}
	}
	return core.Mean(tail)
}

// -----------------------------------------------------------------------------

// DrawdownStats returns the minimum and last drawdown of the compounded path.
func DrawdownStats(returns []float64) (maxDrawdown, currentDrawdown float64) {
	dd := core.Drawdowns(returns)
	if len(dd) == 0 {
		return 0, 0
	}
	for _, d := range dd {
		maxDrawdown = math.Min(maxDrawdown, d)
	}
	return maxDrawdown, dd[len(dd)-1]
}

// -----------------------------------------------------------------------------

// StressTest reports the volatility of each shocked return series.
func StressTest(returns []float64, scenarios []StressScenario) []models.MStressTestResult {
	out := make([]models.MStressTestResult, 0, len(scenarios))
	for _, sc := range scenarios {
		mult := sc.VolMultiplier
		if mult == 0 {
			mult = 1
		}
		shocked := make([]float64, len(returns))
		for i, r := range returns {
			shocked[i] = r*mult + sc.Shift
		}
		out = append(out, models.MStressTestResult{
			Scenario:    sc.Name,
			Description: sc.Description,
			Volatility:  AnnualizedVolatility(shocked),
			MeanReturn:  core.Mean(shocked),
		})
	}
	return out
}

// -----------------------------------------------------------------------------

// RiskMetrics computes every return-only statistic. Beta and alpha need a
// benchmark and are filled by the caller.
func RiskMetrics(returns []float64, riskFreeRate float64) models.MRiskMetrics {
	var95, var99 := ValueAtRisk(returns)
	maxDD, curDD := DrawdownStats(returns)

	calmar := 0.0
	if maxDD < 0 {
		calmar = core.Mean(returns) * utils.TradingDaysPerYear / math.Abs(maxDD)
	}

	return models.MRiskMetrics{
		Volatility:        AnnualizedVolatility(returns),
		SharpeRatio:       SharpeRatio(returns, riskFreeRate),
		SortinoRatio:      SortinoRatio(returns, riskFreeRate),
		CalmarRatio:       calmar,
		VaR95:             var95,
		VaR99:             var99,
		ExpectedShortfall: ExpectedShortfall(returns, var95),
		MaxDrawdown:       maxDD,
		CurrentDrawdown:   curDD,
		StressTests:       StressTest(returns, DefaultStressScenarios),
	}
}

// -----------------------------------------------------------------------------

// BetaAlpha regresses portfolio returns on benchmark returns over their common
// days. Alpha is annualized. Fewer than two common days yields zeros.
func BetaAlpha(portfolio, benchmark []DatedReturn) (beta, alpha float64) {
	p, b := Align(portfolio, benchmark)
	if len(p) < 2 {
		return 0, 0
	}
	a, beta := core.LinearRegression(b, p)
	return beta, a * utils.TradingDaysPerYear
}
