package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-analytics/src/models"
)

func TestResampleIndices(t *testing.T) {
	r := &TimeSeriesResampler{}
	windows := r.ResampleIndices([]int64{0, 30, 60, 61, 200}, 60)

	require.Len(t, windows, 3)
	assert.Equal(t, []int{0, 1}, windows[0].Indices)
	assert.Equal(t, []int{2, 3}, windows[1].Indices)
	assert.Equal(t, int64(60), windows[1].StartTime)
	assert.Equal(t, []int{4}, windows[2].Indices)
	assert.Equal(t, int64(180), windows[2].StartTime)

	assert.Empty(t, r.ResampleIndices(nil, 60))
}

func TestResampleCandles_Hourly(t *testing.T) {
	r := &TimeSeriesResampler{}
	base := []models.MCandle{
		{Timestamp: 3600 * 4, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Timestamp: 3600 * 5, Open: 10.5, High: 13, Low: 10, Close: 12, Volume: 200},
		{Timestamp: 3600 * 6, Open: 12, High: 12.5, Low: 8, Close: 9, Volume: 300},
		{Timestamp: 3600 * 8, Open: 9, High: 10, Low: 8.5, Close: 9.5, Volume: 50},
	}

	out, err := r.ResampleCandles(base, "4h")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, int64(3600*4), out[0].Timestamp)
	assert.Equal(t, 10.0, out[0].Open)
	assert.Equal(t, 13.0, out[0].High)
	assert.Equal(t, 8.0, out[0].Low)
	assert.Equal(t, 9.0, out[0].Close)
	assert.Equal(t, 600.0, out[0].Volume)
	require.NotNil(t, out[0].VWAP)

	assert.Equal(t, int64(3600*8), out[1].Timestamp)

	_, err = r.ResampleCandles(base, "3d")
	assert.Error(t, err)
}

func TestResampleCandles_WeeklyAndMonthly(t *testing.T) {
	r := &TimeSeriesResampler{}
	var daily []models.MCandle
	// 2024-01-29 (Monday) .. 2024-02-11 (Sunday)
	start := time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		daily = append(daily, models.MCandle{
			Timestamp: start.AddDate(0, 0, i).Unix(),
			Open:      float64(i), High: float64(i) + 1, Low: float64(i) - 1, Close: float64(i), Volume: 1,
		})
	}

	weeks, err := r.ResampleCandles(daily, "1w")
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, start.Unix(), weeks[0].Timestamp)
	assert.Equal(t, 7.0, weeks[0].Volume)

	months, err := r.ResampleCandles(daily, "1mo")
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, 3.0, months[0].Volume)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Unix(), months[1].Timestamp)
}

func TestCalculateWindowBoundaries(t *testing.T) {
	start, end := CalculateWindowBoundaries(125, 60)
	assert.Equal(t, int64(120), start)
	assert.Equal(t, int64(180), end)

	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	start, _ = CalculateWindowBoundaries(monday+3*day+5, week)
	assert.Equal(t, monday, start)
}
