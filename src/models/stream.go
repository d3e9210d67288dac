package models

// Stream message types
const (
	StreamInitial = "INITIAL"
	StreamUpdate  = "UPDATE"
	StreamError   = "ERROR"
)

// MStreamMessage is what websocket clients receive.
type MStreamMessage struct {
	Type    string        `json:"type"`
	State   *MMarketState `json:"state,omitempty"`
	Message string        `json:"message,omitempty"`
}

// MClientCommand is an inbound websocket command, e.g.
// {"command":"subscribe","symbols":["AAPL"]}. "watch" narrows the stream to
// the listed symbols without touching the subscription set. "theme" reports
// the client's light/dark preference.
type MClientCommand struct {
	Command string   `json:"command"` // subscribe, unsubscribe, watch, reconnect, theme
	Symbols []string `json:"symbols,omitempty"`
	Theme   string   `json:"theme,omitempty"`
}

// MPortfolioRequest is the body of a portfolio analysis call. Missing
// history is taken from the market data cache.
type MPortfolioRequest struct {
	Positions []MPosition          `json:"positions"`
	History   map[string][]MCandle `json:"history,omitempty"`
}
