// Package marketdata owns the subscription set, the live trade feed and the
// periodic REST refresh, and publishes immutable market state snapshots.
package marketdata

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"market-analytics/src/analysis/technical"
	"market-analytics/src/config"
	"market-analytics/src/helpers"
	"market-analytics/src/interfaces"
	"market-analytics/src/logger"
	"market-analytics/src/models"
	"market-analytics/src/pubsub"
	"market-analytics/src/scheduler"
	"market-analytics/src/utils"
)

// Tick ordering policies
const (
	TickPolicyArrival   = "arrival"
	TickPolicyDropStale = "drop_stale"
)

const (
	refreshJob = "market-refresh"
	cleanupJob = "storage-cleanup"
)

// Dependencies are the external collaborators. Only Historical is required.
type Dependencies struct {
	Historical   interfaces.IHistoricalSource
	Fundamentals interfaces.IFundamentalSource
	Feed         interfaces.ILiveFeed
	News         interfaces.INewsService
	Database     interfaces.IDatabase
}

type MarketDataService struct {
	Config    *config.Config
	Deps      Dependencies
	Technical *technical.TechnicalAnalysisService
	Markets   *utils.MarketScheduler
	Ticks     *utils.MemoryManager
	Retrier   *helpers.Retrier
	Scheduler *scheduler.Scheduler
	Logger    *logger.Logger

	broker   *pubsub.Broker[*models.MMarketState]
	snapshot atomic.Pointer[models.MMarketState]

	// mu serializes writers; readers use snapshot
	mu      sync.Mutex
	subs    map[string]uint64
	nextGen uint64
	errors  *utils.RingBuffer[models.MErrorEntry]

	droppedTicks atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	events    chan models.MFeedEvent
	startOnce sync.Once
	stopOnce  sync.Once
}

// -----------------------------------------------------------------------------

func NewMarketDataService(cfg *config.Config, deps Dependencies, log *logger.Logger) *MarketDataService {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	log = log.Named("MarketData")

	netCfg := cfg.Network
	retrier := helpers.NewRetrier(
		netCfg.MaxRetries,
		time.Duration(netCfg.RetryDelayMs)*time.Millisecond,
		time.Duration(netCfg.RequestTimeout)*time.Second,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &MarketDataService{
		Config:    cfg,
		Deps:      deps,
		Technical: technical.NewTechnicalAnalysisService(cfg.MarketData),
		Markets:   utils.NewMarketScheduler(nil, log),
		Ticks:     utils.NewMemoryManager(cfg.MarketData.MaxMemoryMB, cfg.MarketData.TickHistory, log),
		Retrier:   retrier,
		Scheduler: scheduler.NewScheduler(ctx, log),
		Logger:    log,
		broker:    pubsub.NewBroker[*models.MMarketState](),
		subs:      make(map[string]uint64),
		errors:    utils.NewRingBuffer[models.MErrorEntry](cfg.MarketData.ErrorLogCapacity),
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan models.MFeedEvent, 256),
	}

	initial := &models.MMarketState{
		Quotes:        map[string]models.MRealTimeQuote{},
		Historical:    map[string]models.MHistoricalSeries{},
		Technical:     map[string]models.MTechnicalIndicatorSet{},
		Fundamentals:  map[string]models.MFundamentalSnapshot{},
		News:          []models.MNewsItem{},
		Subscriptions: []string{},
		Connection:    models.ConnDisconnected,
		Errors:        []models.MErrorEntry{},
	}
	s.snapshot.Store(initial)
	s.broker.Publish(initial)
	return s
}

// -----------------------------------------------------------------------------

// Start connects the live feed, restores persisted subscriptions, subscribes
// the configured symbols and schedules the periodic jobs.
func (s *MarketDataService) Start() error {
	var err error
	s.startOnce.Do(func() {
		err = s.start()
	})
	return err
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) start() error {
	if s.Deps.Feed != nil {
		if err := s.Deps.Feed.Start(s.ctx, s.events, &s.wg); err != nil {
			return helpers.NewFeedError("start live feed", err)
		}
		s.wg.Add(1)
		go s.consumeFeed()
	}

	symbols := append([]string{}, s.Config.MarketData.Symbols...)
	if db := s.Deps.Database; db != nil {
		stored, err := db.LoadSubscriptions()
		if err != nil {
			s.recordError("storage", "", err)
		}
		symbols = append(symbols, stored...)
	}
	for _, sym := range symbols {
		s.Subscribe(sym)
	}

	interval := s.Config.RefreshInterval().String()
	if err := s.Scheduler.Every(refreshJob, interval, s.Refresh); err != nil {
		return err
	}
	if s.Deps.Database != nil && s.Config.Storage.CleanupCron != "" {
		if err := s.Scheduler.Register(cleanupJob, s.Config.Storage.CleanupCron, s.cleanup); err != nil {
			return err
		}
	}
	s.Scheduler.Start()

	s.Logger.Info("Market data service started (%d symbols, refresh every %s)", len(symbols), interval)
	return nil
}

// -----------------------------------------------------------------------------

// Destroy releases the feed connection and timers and closes every state
// subscription. In-flight refreshes are cancelled. Safe to call twice.
func (s *MarketDataService) Destroy() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.Scheduler.Stop()
		if s.Deps.Feed != nil {
			if err := s.Deps.Feed.Close(); err != nil {
				s.Logger.Warning("Failed to close live feed: %v", err)
			}
		}
		s.wg.Wait()
		s.broker.Close()
		s.Ticks.Cleanup()
		s.Logger.Info("Market data service destroyed")
	})
}

// -----------------------------------------------------------------------------

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// -----------------------------------------------------------------------------

// Subscribe adds symbol to the active set and triggers an immediate refresh
// of it. Subscribing twice leaves the set unchanged but re-arms a halted
// feed. Failures land in the error log.
func (s *MarketDataService) Subscribe(symbol string) {
	sym := normalizeSymbol(symbol)
	if sym == "" {
		s.recordError("subscribe", symbol, helpers.NewValidationError("empty symbol"))
		return
	}
	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if _, ok := s.subs[sym]; ok {
		s.mu.Unlock()
		// subscribing again is how callers restart a halted feed
		if feed := s.Deps.Feed; feed != nil && feed.State() == models.ConnHalted {
			feed.Reconnect()
		}
		return
	}
	s.nextGen++
	gen := s.nextGen
	s.subs[sym] = gen
	s.commitLocked(func(st *models.MMarketState) {
		st.Subscriptions = s.subscriptionsLocked()
	})
	symbols := s.subscriptionsLocked()
	s.mu.Unlock()

	s.Markets.AddSymbol(sym)
	if s.Deps.Feed != nil {
		s.Deps.Feed.Subscribe(sym)
	}
	s.persistSubscriptions(symbols)
	s.Logger.Info("Subscribed %s", sym)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshSymbol(s.ctx, sym, gen)
	}()
}

// -----------------------------------------------------------------------------

// Unsubscribe removes symbol from the active set, the feed and the cache.
// Unknown symbols are ignored. A refresh already in flight is not cancelled;
// whether its result is applied depends on apply_after_unsubscribe.
func (s *MarketDataService) Unsubscribe(symbol string) {
	sym := normalizeSymbol(symbol)

	s.mu.Lock()
	if _, ok := s.subs[sym]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subs, sym)
	s.commitLocked(func(st *models.MMarketState) {
		st.Subscriptions = s.subscriptionsLocked()
		delete(st.Quotes, sym)
		delete(st.Historical, sym)
		delete(st.Technical, sym)
		delete(st.Fundamentals, sym)
	})
	symbols := s.subscriptionsLocked()
	s.mu.Unlock()

	s.Markets.RemoveSymbol(sym)
	s.Ticks.RemoveSymbol(sym)
	if s.Deps.Feed != nil {
		s.Deps.Feed.Unsubscribe(sym)
	}
	s.persistSubscriptions(symbols)
	s.Logger.Info("Unsubscribed %s", sym)
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) subscriptionsLocked() []string {
	out := make([]string, 0, len(s.subs))
	for sym := range s.subs {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// Subscriptions returns the active symbols, sorted.
func (s *MarketDataService) Subscriptions() []string {
	return s.GetState().Subscriptions
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) persistSubscriptions(symbols []string) {
	if s.Deps.Database == nil {
		return
	}
	if err := s.Deps.Database.SaveSubscriptions(symbols); err != nil {
		s.recordError("storage", "", err)
	}
}

// -----------------------------------------------------------------------------
// Snapshot reads
// -----------------------------------------------------------------------------

// GetState returns the current snapshot. It must not be mutated.
func (s *MarketDataService) GetState() *models.MMarketState {
	return s.snapshot.Load()
}

// -----------------------------------------------------------------------------

// SubscribeState streams every new snapshot; the current one is delivered
// first. Slow readers skip intermediate snapshots.
func (s *MarketDataService) SubscribeState() *pubsub.Subscription[*models.MMarketState] {
	return s.broker.Subscribe()
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) UnsubscribeState(id string) {
	s.broker.Unsubscribe(id)
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) GetRealTimeQuote(symbol string) (models.MRealTimeQuote, bool) {
	q, ok := s.GetState().Quotes[normalizeSymbol(symbol)]
	return q, ok
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) GetHistoricalData(symbol string) (models.MHistoricalSeries, bool) {
	h, ok := s.GetState().Historical[normalizeSymbol(symbol)]
	return h, ok
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) GetTechnicalIndicators(symbol string) (models.MTechnicalIndicatorSet, bool) {
	t, ok := s.GetState().Technical[normalizeSymbol(symbol)]
	return t, ok
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) GetFundamentalData(symbol string) (models.MFundamentalSnapshot, bool) {
	f, ok := s.GetState().Fundamentals[normalizeSymbol(symbol)]
	return f, ok
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) GetMarketNews() []models.MNewsItem {
	return s.GetState().News
}

// -----------------------------------------------------------------------------

// GetRecentTicks returns up to n most recent ticks, oldest first.
func (s *MarketDataService) GetRecentTicks(symbol string, n int) []models.MTradeTick {
	return s.Ticks.History(normalizeSymbol(symbol), n)
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) Errors() []models.MErrorEntry {
	return s.GetState().Errors
}

// -----------------------------------------------------------------------------

// DroppedTicks counts ticks rejected by the drop_stale policy.
func (s *MarketDataService) DroppedTicks() uint64 {
	return s.droppedTicks.Load()
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) ConnectionState() string {
	return s.GetState().Connection
}

// -----------------------------------------------------------------------------

// FeedAttempts is the number of consecutive failed connects of the live feed.
func (s *MarketDataService) FeedAttempts() int {
	if s.Deps.Feed == nil {
		return 0
	}
	return s.Deps.Feed.Attempts()
}

// -----------------------------------------------------------------------------

// Reconnect re-arms a halted live feed.
func (s *MarketDataService) Reconnect() {
	if s.Deps.Feed != nil {
		s.Deps.Feed.Reconnect()
	}
}

// -----------------------------------------------------------------------------
// Snapshot writes
// -----------------------------------------------------------------------------

// commitLocked derives the next snapshot from the current one and publishes
// it. Maps are copied so published snapshots stay immutable. Caller holds mu.
func (s *MarketDataService) commitLocked(mutate func(st *models.MMarketState)) {
	cur := s.snapshot.Load()
	next := *cur
	next.Quotes = cloneMap(cur.Quotes)
	next.Historical = cloneMap(cur.Historical)
	next.Technical = cloneMap(cur.Technical)
	next.Fundamentals = cloneMap(cur.Fundamentals)

	mutate(&next)

	next.Version = cur.Version + 1
	s.snapshot.Store(&next)
	s.broker.Publish(&next)
}

// -----------------------------------------------------------------------------

func (s *MarketDataService) commit(mutate func(st *models.MMarketState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(mutate)
}

// -----------------------------------------------------------------------------

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------

// recordError appends to the bounded error log and publishes it.
func (s *MarketDataService) recordError(source, symbol string, err error) {
	if err == nil {
		return
	}
	s.Logger.Warning("%s error for %q: %v", source, symbol, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.errors.Append(models.MErrorEntry{
		Time:    time.Now().UTC(),
		Source:  source,
		Symbol:  symbol,
		Message: err.Error(),
	})
	entries := s.errors.GetAll()
	s.commitLocked(func(st *models.MMarketState) {
		st.Errors = entries
	})
}

// -----------------------------------------------------------------------------

// isCurrent reports whether a result started under gen may be applied.
// Caller holds mu.
func (s *MarketDataService) isCurrentLocked(symbol string, gen uint64) bool {
	if s.Config.MarketData.ApplyAfterUnsubscribe {
		return true
	}
	cur, ok := s.subs[symbol]
	return ok && cur == gen
}
