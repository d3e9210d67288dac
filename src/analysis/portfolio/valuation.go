package portfolio

import (
	"github.com/shopspring/decimal"

	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------

// ratio returns a/b as float64, 0 when b is zero.
func ratio(a, b decimal.Decimal) float64 {
	if b.IsZero() {
		return 0
	}
	return a.Div(b).InexactFloat64()
}

// -----------------------------------------------------------------------------

// Valuation is the exact-arithmetic valuation of a position set.
type Valuation struct {
	TotalValue decimal.Decimal
	TotalCost  decimal.Decimal
	Positions  []models.MPositionStats
}

// -----------------------------------------------------------------------------

// Value computes market value, cost basis and P&L per position and in total.
// Weights are shares of total market value.
func Value(positions []models.MPosition) Valuation {
	v := Valuation{TotalValue: decimal.Zero, TotalCost: decimal.Zero}
	values := make([]decimal.Decimal, len(positions))

	for i, p := range positions {
		qty := decimal.NewFromFloat(p.Quantity)
		mv := qty.Mul(decimal.NewFromFloat(p.CurrentPrice))
		cost := qty.Mul(decimal.NewFromFloat(p.AveragePrice))
		pnl := mv.Sub(cost)

		values[i] = mv
		v.TotalValue = v.TotalValue.Add(mv)
		v.TotalCost = v.TotalCost.Add(cost)
		v.Positions = append(v.Positions, models.MPositionStats{
			Symbol:      p.Symbol,
			MarketValue: mv.InexactFloat64(),
			CostBasis:   cost.InexactFloat64(),
			PnL:         pnl.InexactFloat64(),
			Return:      ratio(pnl, cost),
		})
	}

	for i := range v.Positions {
		v.Positions[i].Weight = ratio(values[i], v.TotalValue)
	}
	return v
}

// -----------------------------------------------------------------------------

// PnL is TotalValue - TotalCost.
func (v Valuation) PnL() decimal.Decimal {
	return v.TotalValue.Sub(v.TotalCost)
}

// -----------------------------------------------------------------------------

// Return is PnL over cost, 0 for a zero-cost portfolio.
func (v Valuation) Return() float64 {
	return ratio(v.PnL(), v.TotalCost)
}

// -----------------------------------------------------------------------------

// SectorExposure sums market-value weights by sector. Positions without a
// sector are reported under "Unknown".
func SectorExposure(positions []models.MPosition, v Valuation) map[string]float64 {
	out := make(map[string]float64)
	for i, p := range positions {
		sector := p.Sector
		if sector == "" {
			sector = "Unknown"
		}
		out[sector] += v.Positions[i].Weight
	}
	return out
}
