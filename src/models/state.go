package models

import "time"

// Connection states of the live feed
const (
	ConnDisconnected = "disconnected"
	ConnConnecting   = "connecting"
	ConnConnected    = "connected"
	ConnHalted       = "halted"
)

// MErrorEntry is one record of the bounded error log.
type MErrorEntry struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Symbol  string    `json:"symbol,omitempty"`
	Message string    `json:"message"`
}

// MMarketState is the immutable snapshot published by the market data
// service. Consumers must not mutate the maps.
type MMarketState struct {
	Version       uint64                            `json:"version"`
	Quotes        map[string]MRealTimeQuote         `json:"quotes"`
	Historical    map[string]MHistoricalSeries      `json:"historical"`
	Technical     map[string]MTechnicalIndicatorSet `json:"technical"`
	Fundamentals  map[string]MFundamentalSnapshot   `json:"fundamentals"`
	News          []MNewsItem                       `json:"news"`
	Subscriptions []string                          `json:"subscriptions"`
	Connection    string                            `json:"connection"`
	Errors        []MErrorEntry                     `json:"errors"`
	LastRefresh   time.Time                         `json:"last_refresh"`
}
