package utils

import (
	"sync"
	"time"

	"market-analytics/src/logger"
)

// MarketScheduler answers whether the exchanges of tracked symbols are open.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	now       func() time.Time
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, l *logger.Logger) *MarketScheduler {
	if l == nil {
		l = logger.NewSilentLogger()
	}
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l.Named("MarketScheduler"),
		now:       time.Now,
	}
	ms.MapSymbolsToCalendars(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// MapSymbolsToCalendars replaces the symbol to calendar mapping
func (ms *MarketScheduler) MapSymbolsToCalendars(symbols []string) {
	calendars := make(map[string]*TradingCalendar, len(symbols))
	byMIC := make(map[string]*TradingCalendar)

	for _, symbol := range symbols {
		mic := MICForSymbol(symbol)
		cal, ok := byMIC[mic]
		if !ok {
			cal = GetCalendar(symbol, ms.Logger)
			byMIC[mic] = cal
		}
		calendars[symbol] = cal
	}

	ms.mu.Lock()
	ms.Calendars = calendars
	ms.mu.Unlock()

	ms.Logger.Info("Mapped %d symbols to %d unique calendars.", len(symbols), len(byMIC))
}

// -----------------------------------------------------------------------------

// AddSymbol starts tracking one more symbol
func (ms *MarketScheduler) AddSymbol(symbol string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.Calendars[symbol]; ok {
		return
	}
	mic := MICForSymbol(symbol)
	for sym, cal := range ms.Calendars {
		if MICForSymbol(sym) == mic {
			ms.Calendars[symbol] = cal
			return
		}
	}
	ms.Calendars[symbol] = GetCalendar(symbol, ms.Logger)
}

// -----------------------------------------------------------------------------

// RemoveSymbol stops tracking a symbol
func (ms *MarketScheduler) RemoveSymbol(symbol string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.Calendars, symbol)
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the symbol's exchange is open now. Unknown symbols
// resolve their calendar on the fly.
func (ms *MarketScheduler) IsOpen(symbol string) bool {
	ms.mu.RLock()
	cal, ok := ms.Calendars[symbol]
	ms.mu.RUnlock()

	if !ok {
		cal = GetCalendar(symbol, ms.Logger)
	}
	return cal.IsOpenOnMinute(ms.now().UTC())
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are currently open
func (ms *MarketScheduler) AnyMarketOpen() bool {
	now := ms.now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	seen := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		if seen[cal] {
			continue
		}
		seen[cal] = true
		if cal.IsOpenOnMinute(now) {
			return true
		}
	}

	return false
}
