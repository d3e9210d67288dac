package marketdata

import (
	"context"
	"sync"
	"time"

	"market-analytics/src/helpers"
	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------

// Refresh re-fetches historical candles, indicators and fundamentals of every
// subscribed symbol, then the shared news cache. Failures keep the previous
// values.
func (s *MarketDataService) Refresh(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	gens := make(map[string]uint64, len(s.subs))
	for sym, gen := range s.subs {
		gens[sym] = gen
	}
	s.mu.Unlock()

	state := s.GetState()
	symbols := make([]string, 0, len(gens))
	for _, sym := range state.Subscriptions {
		if _, ok := gens[sym]; !ok {
			continue
		}
		_, cached := state.Historical[sym]
		if s.Config.MarketData.SkipClosedMarkets && cached && !s.Markets.IsOpen(sym) {
			s.Logger.Debug("Skipping %s: market closed", sym)
			continue
		}
		symbols = append(symbols, sym)
	}

	s.refreshBatch(ctx, symbols, gens)
	s.refreshNews(ctx, state.Subscriptions)
	s.persistQuotes()

	s.commit(func(st *models.MMarketState) {
		st.LastRefresh = time.Now().UTC()
	})
	s.Logger.Info("Refresh cycle done: %d symbols in %v", len(symbols), time.Since(start).Round(time.Millisecond))
}

// -----------------------------------------------------------------------------

// refreshBatch processes symbols concurrently
func (s *MarketDataService) refreshBatch(ctx context.Context, symbols []string, gens map[string]uint64) {
	if len(symbols) == 0 {
		return
	}

	limit := s.Config.Network.Concurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			s.refreshSymbol(ctx, sym, gens[sym])
		}(symbol)
	}

	wg.Wait()
}

// -----------------------------------------------------------------------------

// refreshSymbol fetches one symbol. gen is the subscription generation the
// request was issued under.
func (s *MarketDataService) refreshSymbol(ctx context.Context, symbol string, gen uint64) {
	s.refreshHistorical(ctx, symbol, gen)
	s.refreshFundamentals(ctx, symbol, gen)
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) refreshHistorical(ctx context.Context, symbol string, gen uint64) {
	src := s.Deps.Historical
	if src == nil {
		return
	}
	interval := s.Config.MarketData.HistoricalInterval
	rng := s.Config.MarketData.HistoricalRange

	candles, err := helpers.Retry(ctx, s.Retrier, "historical "+symbol, func(ctx context.Context) ([]models.MCandle, error) {
		return src.FetchAggregates(ctx, symbol, interval, rng)
	})
	if err != nil {
		if ctx.Err() == nil {
			s.recordError("historical", symbol, err)
		}
		return
	}

	series := models.MHistoricalSeries{
		Symbol:      symbol,
		Timeframe:   interval,
		Candles:     candles,
		LastUpdated: time.Now().UTC(),
	}
	indicators := s.Technical.ComputeIndicatorSet(symbol, candles)

	s.mu.Lock()
	if !s.isCurrentLocked(symbol, gen) {
		s.mu.Unlock()
		s.Logger.Debug("Discarding historical result for %s: unsubscribed", symbol)
		return
	}
	s.commitLocked(func(st *models.MMarketState) {
		st.Historical[symbol] = series
		st.Technical[symbol] = indicators
	})
	s.mu.Unlock()

	if db := s.Deps.Database; db != nil && len(candles) > 0 {
		if err := db.SaveSeries(series); err != nil {
			s.recordError("storage", symbol, err)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) refreshFundamentals(ctx context.Context, symbol string, gen uint64) {
	src := s.Deps.Fundamentals
	if src == nil {
		return
	}

	snap, err := helpers.Retry(ctx, s.Retrier, "fundamentals "+symbol, func(ctx context.Context) (*models.MFundamentalSnapshot, error) {
		return src.FetchFundamentals(ctx, symbol)
	})
	if err != nil {
		if ctx.Err() == nil {
			s.recordError("fundamentals", symbol, err)
		}
		return
	}

	s.mu.Lock()
	if !s.isCurrentLocked(symbol, gen) {
		s.mu.Unlock()
		return
	}
	s.commitLocked(func(st *models.MMarketState) {
		st.Fundamentals[symbol] = *snap
	})
	s.mu.Unlock()

	if db := s.Deps.Database; db != nil {
		if err := db.SaveFundamentals(*snap); err != nil {
			s.recordError("storage", symbol, err)
		}
	}
}

// -----------------------------------------------------------------------------

// refreshNews replaces the news cache once per cycle. Sentiment and impact are
// best effort per article.
func (s *MarketDataService) refreshNews(ctx context.Context, symbols []string) {
	svc := s.Deps.News
	if svc == nil {
		return
	}

	items, err := helpers.Retry(ctx, s.Retrier, "news", func(ctx context.Context) ([]models.MNewsItem, error) {
		return svc.FetchNews(ctx, symbols)
	})
	if err != nil {
		if ctx.Err() == nil {
			s.recordError("news", "", err)
		}
		return
	}

	enriched := make([]models.MNewsItem, len(items))
	for i, it := range items {
		text := it.Headline
		if it.Summary != "" {
			text += ". " + it.Summary
		}
		if sent, err := svc.AnalyzeSentiment(ctx, text); err == nil {
			it.Sentiment = sent
		} else {
			s.Logger.Debug("Sentiment unavailable for %q: %v", it.Headline, err)
		}
		if imp, err := svc.PredictImpact(ctx, text); err == nil {
			it.Impact = imp
		} else {
			s.Logger.Debug("Impact unavailable for %q: %v", it.Headline, err)
		}
		enriched[i] = it
	}

	s.commit(func(st *models.MMarketState) {
		st.News = enriched
	})
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) persistQuotes() {
	db := s.Deps.Database
	if db == nil {
		return
	}
	for _, q := range s.GetState().Quotes {
		if err := db.SaveQuote(q); err != nil {
			s.recordError("storage", q.Symbol, err)
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) cleanup(ctx context.Context) {
	if db := s.Deps.Database; db != nil {
		if err := db.CleanupOldData(); err != nil {
			s.recordError("storage", "", err)
		}
	}
	s.Ticks.CheckMemoryLimits()
}
