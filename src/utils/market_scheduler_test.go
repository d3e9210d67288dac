package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMICForSymbol(t *testing.T) {
	assert.Equal(t, "xnys", MICForSymbol("AAPL"))
	assert.Equal(t, "xlon", MICForSymbol("VOD.L"))
	assert.Equal(t, "xtks", MICForSymbol("7203.T"))
	assert.Equal(t, "xnys", MICForSymbol("BRK.B"))
}

func TestTradingCalendar_Fallback(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	tc := &TradingCalendar{Fallback: true, Timezone: ny}

	// Wednesday 2024-01-10
	assert.True(t, tc.IsOpenOnMinute(time.Date(2024, 1, 10, 10, 0, 0, 0, ny)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2024, 1, 10, 9, 29, 0, 0, ny)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2024, 1, 10, 16, 0, 0, 0, ny)))
	// Saturday
	assert.False(t, tc.IsOpenOnMinute(time.Date(2024, 1, 13, 11, 0, 0, 0, ny)))
}

func TestMarketScheduler_Symbols(t *testing.T) {
	ms := NewMarketScheduler([]string{"AAPL", "MSFT"}, nil)
	assert.Len(t, ms.Calendars, 2)
	assert.Same(t, ms.Calendars["AAPL"], ms.Calendars["MSFT"])

	ms.AddSymbol("GOOG")
	assert.Same(t, ms.Calendars["AAPL"], ms.Calendars["GOOG"])

	ms.RemoveSymbol("AAPL")
	_, ok := ms.Calendars["AAPL"]
	assert.False(t, ok)

	ms.now = func() time.Time { return time.Date(2024, 1, 13, 16, 0, 0, 0, time.UTC) }
	assert.False(t, ms.AnyMarketOpen())
	assert.False(t, ms.IsOpen("MSFT"))
}
