package technical

import (
	"fmt"
	"math"

	"market-analytics/src/models"
)

// Pattern types
const (
	PatternDoji             = "doji"
	PatternHammer           = "hammer"
	PatternBullishEngulfing = "bullish_engulfing"
	PatternBearishEngulfing = "bearish_engulfing"
	PatternDoubleTop        = "double_top"
	PatternDoubleBottom     = "double_bottom"
)

const (
	dojiBodyRatio      = 0.1
	doublePeakTol      = 0.02
	doubleMinRetrace   = 0.03
	doubleSwingWindow  = 2
	hammerShadowFactor = 2.0
)

// -----------------------------------------------------------------------------

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// -----------------------------------------------------------------------------

// DetectPatterns scans a candle window and returns zero or more matches,
// candlestick patterns first in index order, then double tops/bottoms.
func DetectPatterns(candles []models.MCandle) []models.MPatternMatch {
	matches := make([]models.MPatternMatch, 0)

	for i, c := range candles {
		rng := c.High - c.Low
		if rng <= 0 {
			continue
		}
		body := math.Abs(c.Close - c.Open)
		upper := c.High - math.Max(c.Open, c.Close)
		lower := math.Min(c.Open, c.Close) - c.Low

		if body <= dojiBodyRatio*rng {
			matches = append(matches, models.MPatternMatch{
				Type:        PatternDoji,
				Confidence:  clamp01(1 - body/(dojiBodyRatio*rng)),
				StartIndex:  i,
				EndIndex:    i,
				Description: "open and close nearly equal, indecision",
			})
		} else if lower >= hammerShadowFactor*body && upper <= body {
			matches = append(matches, models.MPatternMatch{
				Type:        PatternHammer,
				Confidence:  clamp01(lower / rng),
				StartIndex:  i,
				EndIndex:    i,
				Description: "long lower shadow with small body near the high",
			})
		}

		if i == 0 {
			continue
		}
		prev := candles[i-1]
		prevBody := math.Abs(prev.Close - prev.Open)
		if prevBody == 0 || body <= prevBody {
			continue
		}
		switch {
		case prev.Close < prev.Open && c.Close > c.Open && c.Open <= prev.Close && c.Close >= prev.Open:
			matches = append(matches, models.MPatternMatch{
				Type:        PatternBullishEngulfing,
				Confidence:  clamp01(1 - prevBody/body),
				StartIndex:  i - 1,
				EndIndex:    i,
				Description: "up candle body engulfs the prior down candle",
			})
		case prev.Close > prev.Open && c.Close < c.Open && c.Open >= prev.Close && c.Close <= prev.Open:
			matches = append(matches, models.MPatternMatch{
				Type:        PatternBearishEngulfing,
				Confidence:  clamp01(1 - prevBody/body),
				StartIndex:  i - 1,
				EndIndex:    i,
				Description: "down candle body engulfs the prior up candle",
			})
		}
	}

	matches = append(matches, detectDoubles(candles)...)
	return matches
}

// -----------------------------------------------------------------------------

// detectDoubles pairs consecutive swing highs (lows) of similar price that are
// separated by a retracement of at least doubleMinRetrace.
func detectDoubles(candles []models.MCandle) []models.MPatternMatch {
	highs, lows := swingPoints(candles, doubleSwingWindow)
	var out []models.MPatternMatch

	for k := 1; k < len(highs); k++ {
		a, b := highs[k-1], highs[k]
		p1, p2 := candles[a].High, candles[b].High
		peak := math.Max(p1, p2)
		diff := math.Abs(p1-p2) / peak
		if diff > doublePeakTol {
			continue
		}
		trough := math.Inf(1)
		for j := a; j <= b; j++ {
			trough = math.Min(trough, candles[j].Low)
		}
		retrace := (peak - trough) / peak
		if retrace < doubleMinRetrace {
			continue
		}
		out = append(out, models.MPatternMatch{
			Type:        PatternDoubleTop,
			Confidence:  clamp01(1 - diff/doublePeakTol),
			StartIndex:  a,
			EndIndex:    b,
			Description: fmt.Sprintf("two peaks near %.2f with a %.1f%% pullback", peak, retrace*100),
		})
	}

	for k := 1; k < len(lows); k++ {
		a, b := lows[k-1], lows[k]
		p1, p2 := candles[a].Low, candles[b].Low
		bottom := math.Min(p1, p2)
		if bottom <= 0 {
			continue
		}
		diff := math.Abs(p1-p2) / bottom
		if diff > doublePeakTol {
			continue
		}
		crest := math.Inf(-1)
		for j := a; j <= b; j++ {
			crest = math.Max(crest, candles[j].High)
		}
		rebound := (crest - bottom) / bottom
		if rebound < doubleMinRetrace {
			continue
		}
		out = append(out, models.MPatternMatch{
			Type:        PatternDoubleBottom,
			Confidence:  clamp01(1 - diff/doublePeakTol),
			StartIndex:  a,
			EndIndex:    b,
			Description: fmt.Sprintf("two troughs near %.2f with a %.1f%% rebound", bottom, rebound*100),
		})
	}
	return out
}
