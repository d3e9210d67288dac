package models

import "time"

// MFundamentalSnapshot holds company and valuation fields. Refreshed on the
// periodic cycle only.
type MFundamentalSnapshot struct {
	Symbol            string    `json:"symbol"`
	CompanyName       string    `json:"company_name"`
	Exchange          string    `json:"exchange"`
	Currency          string    `json:"currency"`
	Sector            string    `json:"sector"`
	Industry          string    `json:"industry"`
	MarketCap         float64   `json:"market_cap"`
	PERatio           float64   `json:"pe_ratio"`
	ForwardPE         float64   `json:"forward_pe"`
	EPS               float64   `json:"eps"`
	Beta              float64   `json:"beta"`
	DividendYield     float64   `json:"dividend_yield"`
	PriceToBook       float64   `json:"price_to_book"`
	FiftyTwoWeekHigh  float64   `json:"fifty_two_week_high"`
	FiftyTwoWeekLow   float64   `json:"fifty_two_week_low"`
	AverageVolume     float64   `json:"average_volume"`
	SharesOutstanding float64   `json:"shares_outstanding"`
	UpdatedAt         time.Time `json:"updated_at"`
}
