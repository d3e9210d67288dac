package models

// MPosition is supplied by the caller; the core never creates one.
type MPosition struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	CurrentPrice float64 `json:"current_price"`
	Sector       string  `json:"sector,omitempty"`
}

// MPositionStats is the valuation of a single position.
type MPositionStats struct {
	Symbol      string  `json:"symbol"`
	MarketValue float64 `json:"market_value"`
	CostBasis   float64 `json:"cost_basis"`
	PnL         float64 `json:"pnl"`
	Return      float64 `json:"return"`
	Weight      float64 `json:"weight"`
}

// MStressTestResult reports the volatility of the shocked return series.
type MStressTestResult struct {
	Scenario    string  `json:"scenario"`
	Description string  `json:"description"`
	Volatility  float64 `json:"volatility"`
	MeanReturn  float64 `json:"mean_return"`
}

// MCorrelationMatrix is square and ordered like Symbols.
type MCorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

// MRiskMetrics are recomputed in full on every analysis.
type MRiskMetrics struct {
	Volatility        float64             `json:"volatility"`
	SharpeRatio       float64             `json:"sharpe_ratio"`
	SortinoRatio      float64             `json:"sortino_ratio"`
	CalmarRatio       float64             `json:"calmar_ratio"`
	VaR95             float64             `json:"var_95"`
	VaR99             float64             `json:"var_99"`
	ExpectedShortfall float64             `json:"expected_shortfall"`
	MaxDrawdown       float64             `json:"max_drawdown"`
	CurrentDrawdown   float64             `json:"current_drawdown"`
	Beta              float64             `json:"beta"`
	Alpha             float64             `json:"alpha"`
	StressTests       []MStressTestResult `json:"stress_tests"`
}

// MPortfolioStats is the full analysis of one position set.
type MPortfolioStats struct {
	TotalValue       float64            `json:"total_value"`
	TotalCost        float64            `json:"total_cost"`
	TotalPnL         float64            `json:"total_pnl"`
	TotalReturn      float64            `json:"total_return"`
	Positions        []MPositionStats   `json:"positions"`
	DailyReturns     []float64          `json:"daily_returns"`
	Risk             MRiskMetrics       `json:"risk"`
	SectorExposure   map[string]float64 `json:"sector_exposure"`
	Correlation      MCorrelationMatrix `json:"correlation"`
	RiskContribution map[string]float64 `json:"risk_contribution"`
	OptimalWeights   map[string]float64 `json:"optimal_weights"`
}
