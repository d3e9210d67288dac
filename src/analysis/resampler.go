// Package analysis groups base-interval candles into coarser chart timeframes.
package analysis

import (
	"fmt"
	"sort"
	"time"

	"market-analytics/src/models"
)

const (
	minute = int64(60)
	hour   = 60 * minute
	day    = 24 * hour
	week   = 7 * day
	// 1970-01-05 was the first Monday after the epoch
	mondayOffset = 4 * day
)

// TimeframeSeconds maps fixed-length timeframes to their width.
var TimeframeSeconds = map[string]int64{
	"1m":  minute,
	"5m":  5 * minute,
	"15m": 15 * minute,
	"30m": 30 * minute,
	"1h":  hour,
	"4h":  4 * hour,
	"1d":  day,
	"1w":  week,
}

// Window is one resampling bucket: indices into the sorted input and the
// half-open interval [StartTime, EndTime).
type Window struct {
	Indices   []int
	StartTime int64
	EndTime   int64
}

// TimeSeriesResampler handles time-based resampling calculations.
type TimeSeriesResampler struct{}

// -----------------------------------------------------------------------------

// ResampleIndices groups ascending timestamps into aligned buckets of
// windowSeconds. Empty buckets are skipped.
func (r *TimeSeriesResampler) ResampleIndices(timestamps []int64, windowSeconds int64) []Window {
	if len(timestamps) == 0 || windowSeconds <= 0 {
		return []Window{}
	}

	var results []Window
	for i, ts := range timestamps {
		start, end := CalculateWindowBoundaries(ts, windowSeconds)
		if n := len(results); n > 0 && results[n-1].StartTime == start {
			results[n-1].Indices = append(results[n-1].Indices, i)
			continue
		}
		results = append(results, Window{Indices: []int{i}, StartTime: start, EndTime: end})
	}
	return results
}

// -----------------------------------------------------------------------------

// ResampleCandles aggregates candles into the given timeframe. "1mo" groups
// by UTC calendar month; other timeframes must be in TimeframeSeconds.
func (r *TimeSeriesResampler) ResampleCandles(candles []models.MCandle, timeframe string) ([]models.MCandle, error) {
	sorted := make([]models.MCandle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var windows []Window
	if timeframe == "1mo" {
		windows = monthWindows(sorted)
	} else {
		seconds, ok := TimeframeSeconds[timeframe]
		if !ok {
			return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
		}
		timestamps := make([]int64, len(sorted))
		for i, c := range sorted {
			timestamps[i] = c.Timestamp
		}
		windows = r.ResampleIndices(timestamps, seconds)
	}

	out := make([]models.MCandle, 0, len(windows))
	for _, w := range windows {
		out = append(out, aggregate(sorted, w))
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func monthWindows(sorted []models.MCandle) []Window {
	var results []Window
	for i, c := range sorted {
		t := time.Unix(c.Timestamp, 0).UTC()
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		if n := len(results); n > 0 && results[n-1].StartTime == start.Unix() {
			results[n-1].Indices = append(results[n-1].Indices, i)
			continue
		}
		results = append(results, Window{
			Indices:   []int{i},
			StartTime: start.Unix(),
			EndTime:   start.AddDate(0, 1, 0).Unix(),
		})
	}
	return results
}

// -----------------------------------------------------------------------------

// aggregate folds a window into one candle stamped at the window start.
// VWAP is volume weighted over the bars' own VWAP or typical price.
func aggregate(candles []models.MCandle, w Window) models.MCandle {
	first := candles[w.Indices[0]]
	out := models.MCandle{
		Timestamp: w.StartTime,
		Open:      first.Open,
		High:      first.High,
		Low:       first.Low,
	}

	var pv float64
	for _, idx := range w.Indices {
		c := candles[idx]
		if c.High > out.High {
			out.High = c.High
		}
		if c.Low < out.Low {
			out.Low = c.Low
		}
		out.Close = c.Close
		out.Volume += c.Volume

		price := (c.High + c.Low + c.Close) / 3
		if c.VWAP != nil {
			price = *c.VWAP
		}
		pv += price * c.Volume
	}

	if out.Volume > 0 {
		vwap := pv / out.Volume
		out.VWAP = &vwap
	}
	return out
}

// -----------------------------------------------------------------------------

// CalculateWindowBoundaries aligns ts to its bucket. Weekly buckets start on
// Monday 00:00 UTC.
func CalculateWindowBoundaries(ts int64, window int64) (int64, int64) {
	offset := int64(0)
	if window == week {
		offset = mondayOffset
	}
	rel := ts - offset
	start := rel - ((rel%window)+window)%window + offset
	return start, start + window
}
