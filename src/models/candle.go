package models

import (
	"encoding/json"
	"math"
	"time"
)

// MCandle is a single OHLCV bar. Timestamp is unix seconds.
type MCandle struct {
	Timestamp int64    `json:"timestamp"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	Volume    float64  `json:"volume"`
	VWAP      *float64 `json:"vwap,omitempty"`
}

// -----------------------------------------------------------------------------

// MHistoricalSeries is replaced wholesale on every refresh.
type MHistoricalSeries struct {
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Candles     []MCandle `json:"candles"`
	LastUpdated time.Time `json:"last_updated"`
}

// -----------------------------------------------------------------------------

// MSeries is an indicator array aligned to its input. Undefined entries are NaN
// in memory and null on the wire.
type MSeries []float64

func (s MSeries) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i := range s {
		if math.IsNaN(s[i]) || math.IsInf(s[i], 0) {
			continue
		}
		v := s[i]
		out[i] = &v
	}
	return json.Marshal(out)
}

func (s *MSeries) UnmarshalJSON(data []byte) error {
	var in []*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	res := make(MSeries, len(in))
	for i, v := range in {
		if v == nil {
			res[i] = math.NaN()
		} else {
			res[i] = *v
		}
	}
	*s = res
	return nil
}

// Closes extracts the closing prices of a candle slice.
func Closes(candles []MCandle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
