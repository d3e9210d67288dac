package technical

import (
	"fmt"
	"strconv"

	"market-analytics/src/helpers"
	"market-analytics/src/models"
)

// IndicatorTypes lists the chart indicator types ComputeIndicator accepts.
var IndicatorTypes = map[string]bool{
	"sma": true, "ema": true, "rsi": true, "atr": true, "obv": true,
	"vwap": true, "macd": true, "bollinger": true, "stochastic": true,
}

// OverlayTypes lists the overlay types ComputeOverlay accepts.
var OverlayTypes = map[string]bool{
	"pivot": true, "fibonacci": true, "support_resistance": true, "patterns": true,
}

// -----------------------------------------------------------------------------
// TechnicalAnalysisService bundles the pure indicator functions behind the
// periods configured for the market data snapshot.
// -----------------------------------------------------------------------------

type TechnicalAnalysisService struct {
	SMAPeriod       int
	EMAPeriod       int
	RSIPeriod       int
	BollingerPeriod int
	BollingerK      float64
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
}

// -----------------------------------------------------------------------------

func NewTechnicalAnalysisService(cfg models.MMarketDataConfig) *TechnicalAnalysisService {
	s := &TechnicalAnalysisService{
		SMAPeriod:       cfg.SMAPeriod,
		EMAPeriod:       cfg.EMAPeriod,
		RSIPeriod:       cfg.RSIPeriod,
		BollingerPeriod: DefaultBollingerPeriod,
		BollingerK:      DefaultBollingerStdDevs,
		MACDFast:        DefaultMACDFast,
		MACDSlow:        DefaultMACDSlow,
		MACDSignal:      DefaultMACDSignal,
	}
	if s.SMAPeriod <= 0 {
		s.SMAPeriod = 20
	}
	if s.EMAPeriod <= 0 {
		s.EMAPeriod = 20
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = DefaultRSIPeriod
	}
	return s
}

// -----------------------------------------------------------------------------

// ComputeIndicatorSet derives the snapshot indicator bundle from candles.
func (s *TechnicalAnalysisService) ComputeIndicatorSet(symbol string, candles []models.MCandle) models.MTechnicalIndicatorSet {
	closes := models.Closes(candles)
	return models.MTechnicalIndicatorSet{
		Symbol:    symbol,
		SMA:       SMA(closes, s.SMAPeriod),
		EMA:       EMA(closes, s.EMAPeriod),
		RSI:       RSI(closes, s.RSIPeriod),
		MACD:      MACD(closes, s.MACDFast, s.MACDSlow, s.MACDSignal),
		Bollinger: Bollinger(closes, s.BollingerPeriod, s.BollingerK),
	}
}

// -----------------------------------------------------------------------------

func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok && v > 0 {
		return v
	}
	return def
}

func periodOr(period, def int) int {
	if period > 0 {
		return period
	}
	return def
}

// -----------------------------------------------------------------------------

// ComputeIndicator evaluates a chart indicator. Single-series indicators are
// keyed by the indicator id; multi-series ones by "<id>.<component>".
func (s *TechnicalAnalysisService) ComputeIndicator(ind models.MChartIndicator, candles []models.MCandle) (map[string]models.MSeries, error) {
	closes := models.Closes(candles)
	out := make(map[string]models.MSeries)

	switch ind.Type {
	case "sma":
		out[ind.ID] = SMA(closes, periodOr(ind.Period, s.SMAPeriod))
	case "ema":
		out[ind.ID] = EMA(closes, periodOr(ind.Period, s.EMAPeriod))
	case "rsi":
		out[ind.ID] = RSI(closes, periodOr(ind.Period, s.RSIPeriod))
	case "atr":
		out[ind.ID] = ATR(candles, periodOr(ind.Period, DefaultATRPeriod))
	case "obv":
		out[ind.ID] = OBV(candles)
	case "vwap":
		out[ind.ID] = VWAP(candles)
	case "macd":
		m := MACD(closes,
			int(param(ind.Params, "fast", float64(s.MACDFast))),
			int(param(ind.Params, "slow", float64(s.MACDSlow))),
			int(param(ind.Params, "signal", float64(s.MACDSignal))))
		out[ind.ID+".line"] = m.Line
		out[ind.ID+".signal"] = m.Signal
		out[ind.ID+".histogram"] = m.Histogram
	case "bollinger":
		b := Bollinger(closes, periodOr(ind.Period, s.BollingerPeriod), param(ind.Params, "k", s.BollingerK))
		out[ind.ID+".upper"] = b.Upper
		out[ind.ID+".middle"] = b.Middle
		out[ind.ID+".lower"] = b.Lower
	case "stochastic":
		st := Stochastic(candles, periodOr(ind.Period, DefaultStochasticK), int(param(ind.Params, "d", DefaultStochasticD)))
		out[ind.ID+".k"] = st.K
		out[ind.ID+".d"] = st.D
	default:
		return nil, helpers.NewValidationError(fmt.Sprintf("unknown indicator type %q", ind.Type))
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// ComputeOverlay evaluates a price-level overlay. Pivot points use the bar
// before the last one; fibonacci uses the high and low of the whole window.
func (s *TechnicalAnalysisService) ComputeOverlay(ov models.MChartOverlay, candles []models.MCandle) (models.MOverlayData, error) {
	data := models.MOverlayData{ID: ov.ID, Type: ov.Type, Color: ov.Color, Levels: map[string]float64{}}
	if len(candles) == 0 {
		return data, nil
	}

	switch ov.Type {
	case "pivot":
		bar := candles[len(candles)-1]
		if len(candles) > 1 {
			bar = candles[len(candles)-2]
		}
		p := PivotPoints(bar.High, bar.Low, bar.Close)
		data.Levels = map[string]float64{
			"pivot": p.Pivot, "r1": p.R1, "r2": p.R2, "r3": p.R3, "s1": p.S1, "s2": p.S2, "s3": p.S3,
		}
	case "fibonacci":
		high, low := candles[0].High, candles[0].Low
		for _, c := range candles[1:] {
			if c.High > high {
				high = c.High
			}
			if c.Low < low {
				low = c.Low
			}
		}
		f := Fibonacci(high, low)
		for _, l := range f.Retracements {
			data.Levels["retracement_"+strconv.FormatFloat(l.Ratio, 'f', -1, 64)] = l.Price
		}
		for _, l := range f.Extensions {
			data.Levels["extension_"+strconv.FormatFloat(l.Ratio, 'f', -1, 64)] = l.Price
		}
	case "support_resistance":
		levels := SupportResistance(candles, int(param(ov.Params, "window", 2)), param(ov.Params, "tolerance", 0.01))
		counts := map[string]int{}
		for _, l := range levels {
			counts[l.Type]++
			data.Levels[fmt.Sprintf("%s_%d", l.Type, counts[l.Type])] = l.Price
		}
	case "patterns":
		data.Patterns = DetectPatterns(candles)
	default:
		return data, helpers.NewValidationError(fmt.Sprintf("unknown overlay type %q", ov.Type))
	}
	return data, nil
}
