package marketdata

import (
	"market-analytics/src/analysis/core"
	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------

// consumeFeed applies live feed events until the feed channel is abandoned.
func (s *MarketDataService) consumeFeed() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.handleFeedEvent(ev)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) handleFeedEvent(ev models.MFeedEvent) {
	if ev.Err != nil {
		s.recordError("feed", "", ev.Err)
	}
	if ev.State != "" {
		s.commit(func(st *models.MMarketState) {
			st.Connection = ev.State
		})
		if ev.State == models.ConnHalted {
			s.Logger.Error("Live feed halted; call Reconnect or subscribe again to resume")
		}
	}
	if len(ev.Ticks) > 0 {
		s.ApplyTicks(ev.Ticks)
	}
}

// -----------------------------------------------------------------------------

// ApplyTicks updates the quotes of subscribed symbols from trade ticks. Change
// is measured against the previously cached price of the symbol. A batch with
// no accepted tick leaves the snapshot untouched.
func (s *MarketDataService) ApplyTicks(ticks []models.MTradeTick) {
	dropStale := s.Config.MarketData.TickPolicy == TickPolicyDropStale

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snapshot.Load()
	quotes := make(map[string]models.MRealTimeQuote)
	accepted := make([]models.MTradeTick, 0, len(ticks))
	for _, t := range ticks {
		sym := normalizeSymbol(t.Symbol)
		if _, ok := s.subs[sym]; !ok {
			continue
		}
		prev, had := quotes[sym]
		if !had {
			prev, had = cur.Quotes[sym]
		}
		if dropStale && had && t.Timestamp < prev.Timestamp {
			s.droppedTicks.Add(1)
			continue
		}
		quotes[sym] = nextQuote(prev, had, t, s.Markets.IsOpen(sym))
		t.Symbol = sym
		accepted = append(accepted, t)
	}
	if len(accepted) == 0 {
		return
	}

	s.commitLocked(func(st *models.MMarketState) {
		for sym, q := range quotes {
			st.Quotes[sym] = q
		}
	})
	for _, t := range accepted {
		s.Ticks.AddTick(t)
	}
}

// -----------------------------------------------------------------------------

func nextQuote(prev models.MRealTimeQuote, had bool, t models.MTradeTick, open bool) models.MRealTimeQuote {
	q := models.MRealTimeQuote{
		Symbol:     normalizeSymbol(t.Symbol),
		Price:      t.Price,
		Volume:     t.Volume,
		Timestamp:  t.Timestamp,
		Bid:        prev.Bid,
		Ask:        prev.Ask,
		BidSize:    prev.BidSize,
		AskSize:    prev.AskSize,
		MarketOpen: open,
	}
	if had && prev.Price != 0 {
		q.Change = t.Price - prev.Price
		q.ChangePercent = core.CalculateChangePercent(t.Price, prev.Price) * 100
	}
	if t.Bid > 0 {
		q.Bid, q.BidSize = t.Bid, t.BidSize
	}
	if t.Ask > 0 {
		q.Ask, q.AskSize = t.Ask, t.AskSize
	}
	return q
}
