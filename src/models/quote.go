package models

// MRealTimeQuote is the last-write-wins quote per symbol. Change and
// ChangePercent are relative to the previously cached price; ChangePercent is
// expressed in percent (5 means 5%).
type MRealTimeQuote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        float64 `json:"volume"`
	Timestamp     int64   `json:"timestamp"` // unix milliseconds
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	BidSize       float64 `json:"bid_size"`
	AskSize       float64 `json:"ask_size"`
	MarketOpen    bool    `json:"market_open"`
}

// MTradeTick is one trade delivered by the live feed.
type MTradeTick struct {
	Symbol    string  `json:"s"`
	Price     float64 `json:"p"`
	Volume    float64 `json:"v"`
	Timestamp int64   `json:"t"` // unix milliseconds
	Bid       float64 `json:"bp,omitempty"`
	Ask       float64 `json:"ap,omitempty"`
	BidSize   float64 `json:"bs,omitempty"`
	AskSize   float64 `json:"as,omitempty"`
}

// -----------------------------------------------------------------------------
// Live feed wire messages
// -----------------------------------------------------------------------------

// MFeedMessage is an inbound feed frame, e.g. {"type":"trade","data":[...]}.
type MFeedMessage struct {
	Type string       `json:"type"`
	Data []MTradeTick `json:"data"`
	Msg  string       `json:"msg,omitempty"`
}

// MFeedControl is an outbound subscribe/unsubscribe frame.
type MFeedControl struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// MFeedEvent is what the live feed hands to its consumer: either a batch of
// ticks or a connection state transition.
type MFeedEvent struct {
	Ticks []MTradeTick
	State string
	Err   error
}
