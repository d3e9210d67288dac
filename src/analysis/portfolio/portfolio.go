// Package portfolio values position sets and measures their risk from
// historical candle series.
package portfolio

import (
	"market-analytics/src/logger"
	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------
// PortfolioAnalysisService is stateless apart from its configuration; every
// call recomputes from scratch.
// -----------------------------------------------------------------------------

type PortfolioAnalysisService struct {
	RiskFreeRate float64
	Benchmark    string
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPortfolioAnalysisService(cfg models.MPortfolioConfig, log *logger.Logger) *PortfolioAnalysisService {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &PortfolioAnalysisService{
		RiskFreeRate: cfg.RiskFreeRate,
		Benchmark:    cfg.Benchmark,
		Logger:       log.Named("PortfolioAnalysis"),
	}
}

// -----------------------------------------------------------------------------

// AnalyzePortfolio computes valuation and risk for positions. history maps
// symbols to their candles; the benchmark series, when present, drives beta
// and alpha.
func (s *PortfolioAnalysisService) AnalyzePortfolio(positions []models.MPosition, history map[string][]models.MCandle) models.MPortfolioStats {
	valuation := Value(positions)
	dated := DailyReturns(positions, history)
	returns := Values(dated)

	risk := RiskMetrics(returns, s.RiskFreeRate)
	if bench, ok := history[s.Benchmark]; ok && s.Benchmark != "" {
		risk.Beta, risk.Alpha = BetaAlpha(dated, SymbolReturns(bench))
	} else {
		s.Logger.Debug("No benchmark series for %q, beta/alpha left at zero", s.Benchmark)
	}

	symbols := make([]string, len(positions))
	series := make([][]DatedReturn, len(positions))
	weights := make([]float64, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
		series[i] = SymbolReturns(history[p.Symbol])
		weights[i] = valuation.Positions[i].Weight
	}

	cov := CovarianceMatrix(series)
	contribution := RiskContribution(weights, cov)
	optimal := MinimumVarianceWeights(cov)

	stats := models.MPortfolioStats{
		TotalValue:       valuation.TotalValue.InexactFloat64(),
		TotalCost:        valuation.TotalCost.InexactFloat64(),
		TotalPnL:         valuation.PnL().InexactFloat64(),
		TotalReturn:      valuation.Return(),
		Positions:        valuation.Positions,
		DailyReturns:     returns,
		Risk:             risk,
		SectorExposure:   SectorExposure(positions, valuation),
		Correlation:      models.MCorrelationMatrix{Symbols: symbols, Values: CorrelationMatrix(series)},
		RiskContribution: make(map[string]float64, len(positions)),
		OptimalWeights:   make(map[string]float64, len(positions)),
	}
	if stats.Positions == nil {
		stats.Positions = []models.MPositionStats{}
	}
	for i, sym := range symbols {
		stats.RiskContribution[sym] += contribution[i]
		stats.OptimalWeights[sym] += optimal[i]
	}

	s.Logger.Debug("Analyzed %d positions over %d return days", len(positions), len(returns))
	return stats
}
