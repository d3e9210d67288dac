package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-analytics/src/config"
	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type stubHistorical struct {
	mu      sync.Mutex
	calls   map[string]int
	fail    bool
	block   chan struct{}
	candles []models.MCandle
}

func newStubHistorical() *stubHistorical {
	candles := make([]models.MCandle, 30)
	for i := range candles {
		p := 100 + float64(i)
		candles[i] = models.MCandle{Timestamp: int64(1700000000 + i*86400), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	return &stubHistorical{calls: map[string]int{}, candles: candles}
}

func (h *stubHistorical) Name() string { return "stub" }

func (h *stubHistorical) FetchAggregates(ctx context.Context, symbol, interval, rng string) ([]models.MCandle, error) {
	h.mu.Lock()
	h.calls[symbol]++
	fail, block := h.fail, h.block
	h.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("upstream down")
	}
	return h.candles, nil
}

func (h *stubHistorical) setFail(v bool) {
	h.mu.Lock()
	h.fail = v
	h.mu.Unlock()
}

func (h *stubHistorical) callCount(symbol string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[symbol]
}

type stubFundamentals struct{}

func (stubFundamentals) FetchFundamentals(ctx context.Context, symbol string) (*models.MFundamentalSnapshot, error) {
	return &models.MFundamentalSnapshot{Symbol: symbol, CompanyName: symbol + " Inc", Sector: "Technology"}, nil
}

type stubFeed struct {
	mu         sync.Mutex
	subscribed map[string]int
	reconnects int
	state      string
}

func (f *stubFeed) Start(ctx context.Context, out chan<- models.MFeedEvent, wg *sync.WaitGroup) error {
	return nil
}

func (f *stubFeed) Subscribe(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[symbol]++
}

func (f *stubFeed) Unsubscribe(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribed, symbol)
}

func (f *stubFeed) State() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == "" {
		return models.ConnConnected
	}
	return f.state
}

func (f *stubFeed) Attempts() int { return 2 }

func (f *stubFeed) Reconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
}

func (f *stubFeed) Close() error { return nil }

type stubNews struct{}

func (stubNews) FetchNews(ctx context.Context, symbols []string) ([]models.MNewsItem, error) {
	return []models.MNewsItem{{ID: "1", Headline: "Good"}, {ID: "2", Headline: "Bad"}}, nil
}

func (stubNews) AnalyzeSentiment(ctx context.Context, text string) (*models.MSentiment, error) {
	if text == "Bad" {
		return nil, errors.New("sentiment down")
	}
	return &models.MSentiment{Sentiment: "positive", Score: 0.5}, nil
}

func (stubNews) PredictImpact(ctx context.Context, text string) (*models.MNewsImpact, error) {
	return &models.MNewsImpact{ImpactScore: 0.3}, nil
}

type stubDB struct {
	mu     sync.Mutex
	stored []string
	saved  [][]string
	series int
}

func (d *stubDB) Initialize() error { return nil }
func (d *stubDB) SaveSeries(series models.MHistoricalSeries) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.series++
	return nil
}
func (d *stubDB) LoadSeries(symbol, timeframe string) ([]models.MCandle, error) { return nil, nil }
func (d *stubDB) SaveQuote(quote models.MRealTimeQuote) error                   { return nil }
func (d *stubDB) SaveFundamentals(snapshot models.MFundamentalSnapshot) error   { return nil }
func (d *stubDB) SaveSubscriptions(symbols []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saved = append(d.saved, symbols)
	return nil
}
func (d *stubDB) LoadSubscriptions() ([]string, error) { return d.stored, nil }
func (d *stubDB) CleanupOldData() error                { return nil }
func (d *stubDB) Close() error                         { return nil }

// -----------------------------------------------------------------------------

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.DBType = "none"
	cfg.Network.MaxRetries = 2
	cfg.Network.RetryDelayMs = 1
	cfg.Network.RequestTimeout = 2
	cfg.MarketData.Symbols = nil
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, deps Dependencies) *MarketDataService {
	t.Helper()
	svc := NewMarketDataService(cfg, deps, nil)
	t.Cleanup(svc.Destroy)
	return svc
}

func waitForHistory(t *testing.T, svc *MarketDataService, symbol string) models.MHistoricalSeries {
	t.Helper()
	var series models.MHistoricalSeries
	require.Eventually(t, func() bool {
		var ok bool
		series, ok = svc.GetHistoricalData(symbol)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return series
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestSubscribe_Idempotent(t *testing.T) {
	hist := newStubHistorical()
	feed := &stubFeed{subscribed: map[string]int{}}
	svc := newTestService(t, testConfig(), Dependencies{Historical: hist, Feed: feed, Fundamentals: stubFundamentals{}})

	svc.Subscribe("aapl")
	svc.Subscribe("AAPL")

	assert.Equal(t, []string{"AAPL"}, svc.Subscriptions())
	assert.Equal(t, 1, feed.subscribed["AAPL"])

	series := waitForHistory(t, svc, "AAPL")
	assert.Len(t, series.Candles, 30)
	require.Eventually(t, func() bool {
		_, ok := svc.GetFundamentalData("AAPL")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	ind, ok := svc.GetTechnicalIndicators("AAPL")
	require.True(t, ok)
	assert.Len(t, ind.SMA, 30)
	assert.Len(t, ind.RSI, 29)
	assert.Equal(t, 1, hist.callCount("AAPL"))
}

func TestSubscribe_AgainRearmsHaltedFeed(t *testing.T) {
	feed := &stubFeed{subscribed: map[string]int{}}
	svc := newTestService(t, testConfig(), Dependencies{Historical: newStubHistorical(), Feed: feed})

	svc.Subscribe("AAPL")
	svc.Subscribe("AAPL")
	assert.Equal(t, 0, feed.reconnects, "connected feed is left alone")

	feed.mu.Lock()
	feed.state = models.ConnHalted
	feed.mu.Unlock()

	svc.Subscribe("aapl")
	assert.Equal(t, 1, feed.reconnects)
	assert.Equal(t, 1, feed.subscribed["AAPL"])
	assert.Equal(t, []string{"AAPL"}, svc.Subscriptions())
}

func TestFeedAttempts(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{Historical: newStubHistorical()})
	assert.Equal(t, 0, svc.FeedAttempts())

	withFeed := newTestService(t, testConfig(), Dependencies{
		Historical: newStubHistorical(),
		Feed:       &stubFeed{subscribed: map[string]int{}},
	})
	assert.Equal(t, 2, withFeed.FeedAttempts())
}

func TestNewService_PassesMemoryLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MarketData.MaxMemoryMB = 64
	svc := newTestService(t, cfg, Dependencies{Historical: newStubHistorical()})
	assert.Equal(t, 64, svc.Ticks.MaxMemoryMB)
}

func TestUnsubscribe_UnknownIsNoop(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{Historical: newStubHistorical()})
	v := svc.GetState().Version
	svc.Unsubscribe("NOPE")
	assert.Equal(t, v, svc.GetState().Version)
}

func TestGetters_NotPresent(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{})
	_, ok := svc.GetRealTimeQuote("X")
	assert.False(t, ok)
	_, ok = svc.GetHistoricalData("X")
	assert.False(t, ok)
	_, ok = svc.GetTechnicalIndicators("X")
	assert.False(t, ok)
	_, ok = svc.GetFundamentalData("X")
	assert.False(t, ok)
	assert.Empty(t, svc.GetMarketNews())
}

func TestApplyTicks_ChangeRelativeToCachedPrice(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{})
	svc.Subscribe("X")

	svc.ApplyTicks([]models.MTradeTick{{Symbol: "X", Price: 100, Volume: 10, Timestamp: 1}})
	q, ok := svc.GetRealTimeQuote("X")
	require.True(t, ok)
	assert.Equal(t, 0.0, q.Change)

	svc.ApplyTicks([]models.MTradeTick{{Symbol: "X", Price: 105, Volume: 5, Timestamp: 2, Bid: 104.9, BidSize: 3}})
	q, _ = svc.GetRealTimeQuote("X")
	assert.InDelta(t, 5.0, q.Change, 1e-9)
	assert.InDelta(t, 5.0, q.ChangePercent, 1e-9)
	assert.Equal(t, 104.9, q.Bid)
	assert.Equal(t, 3.0, q.BidSize)

	assert.Len(t, svc.GetRecentTicks("X", 0), 2)
}

func TestApplyTicks_IgnoresUnsubscribed(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{})
	svc.ApplyTicks([]models.MTradeTick{{Symbol: "GHOST", Price: 1, Timestamp: 1}})
	_, ok := svc.GetRealTimeQuote("GHOST")
	assert.False(t, ok)
}

func TestApplyTicks_NothingAcceptedKeepsSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.MarketData.TickPolicy = TickPolicyDropStale
	svc := newTestService(t, cfg, Dependencies{})
	svc.Subscribe("X")
	svc.ApplyTicks([]models.MTradeTick{{Symbol: "X", Price: 100, Timestamp: 2000}})

	sub := svc.SubscribeState()
	defer svc.UnsubscribeState(sub.ID)
	before := <-sub.C
	require.Same(t, svc.GetState(), before)

	svc.ApplyTicks([]models.MTradeTick{{Symbol: "GHOST", Price: 1, Timestamp: 3000}})
	svc.ApplyTicks([]models.MTradeTick{{Symbol: "X", Price: 90, Timestamp: 1000}})
	svc.ApplyTicks(nil)

	assert.Same(t, before, svc.GetState())
	assert.Equal(t, uint64(1), svc.DroppedTicks())
	assert.Len(t, svc.GetRecentTicks("X", 0), 1)
	select {
	case st := <-sub.C:
		t.Fatalf("unexpected publish of version %d", st.Version)
	default:
	}
}

func TestApplyTicks_Policies(t *testing.T) {
	ticks := []models.MTradeTick{
		{Symbol: "X", Price: 100, Timestamp: 2000},
		{Symbol: "X", Price: 90, Timestamp: 1000},
	}

	t.Run("arrival", func(t *testing.T) {
		svc := newTestService(t, testConfig(), Dependencies{})
		svc.Subscribe("X")
		svc.ApplyTicks(ticks)
		q, _ := svc.GetRealTimeQuote("X")
		assert.Equal(t, 90.0, q.Price)
		assert.InDelta(t, -10.0, q.Change, 1e-9)
		assert.Equal(t, uint64(0), svc.DroppedTicks())
	})

	t.Run("drop_stale", func(t *testing.T) {
		cfg := testConfig()
		cfg.MarketData.TickPolicy = TickPolicyDropStale
		svc := newTestService(t, cfg, Dependencies{})
		svc.Subscribe("X")
		svc.ApplyTicks(ticks)
		q, _ := svc.GetRealTimeQuote("X")
		assert.Equal(t, 100.0, q.Price)
		assert.Equal(t, uint64(1), svc.DroppedTicks())
	})
}

func TestRefresh_FailureKeepsStaleValues(t *testing.T) {
	hist := newStubHistorical()
	svc := newTestService(t, testConfig(), Dependencies{Historical: hist})
	svc.Subscribe("AAPL")
	before := waitForHistory(t, svc, "AAPL")

	hist.setFail(true)
	svc.Refresh(context.Background())

	after, ok := svc.GetHistoricalData("AAPL")
	require.True(t, ok)
	assert.Equal(t, before.LastUpdated, after.LastUpdated)
	assert.Equal(t, before.Candles, after.Candles)
	assert.Equal(t, 3, hist.callCount("AAPL"), "one initial fetch plus two attempts")

	errs := svc.Errors()
	require.NotEmpty(t, errs)
	last := errs[len(errs)-1]
	assert.Equal(t, "historical", last.Source)
	assert.Equal(t, "AAPL", last.Symbol)
	assert.False(t, svc.GetState().LastRefresh.IsZero())
}

func TestErrorLog_Bounded(t *testing.T) {
	cfg := testConfig()
	cfg.MarketData.ErrorLogCapacity = 3
	svc := newTestService(t, cfg, Dependencies{})

	for i := 0; i < 5; i++ {
		svc.recordError("test", "", fmt.Errorf("error %d", i))
	}
	errs := svc.Errors()
	require.Len(t, errs, 3)
	assert.Equal(t, "error 2", errs[0].Message)
	assert.Equal(t, "error 4", errs[2].Message)
}

func TestInFlightResultAfterUnsubscribe(t *testing.T) {
	for _, apply := range []bool{true, false} {
		t.Run(fmt.Sprintf("apply=%v", apply), func(t *testing.T) {
			hist := newStubHistorical()
			hist.block = make(chan struct{})
			cfg := testConfig()
			cfg.MarketData.ApplyAfterUnsubscribe = apply
			svc := NewMarketDataService(cfg, Dependencies{Historical: hist}, nil)

			svc.Subscribe("AAPL")
			require.Eventually(t, func() bool { return hist.callCount("AAPL") == 1 }, time.Second, time.Millisecond)
			svc.Unsubscribe("AAPL")
			close(hist.block)

			if apply {
				waitForHistory(t, svc, "AAPL")
			}
			svc.Destroy()

			_, ok := svc.GetHistoricalData("AAPL")
			assert.Equal(t, apply, ok)
			assert.Empty(t, svc.Subscriptions())
		})
	}
}

func TestFeedEvents_StateAndErrors(t *testing.T) {
	feed := &stubFeed{subscribed: map[string]int{}}
	svc := newTestService(t, testConfig(), Dependencies{Feed: feed})

	svc.handleFeedEvent(models.MFeedEvent{State: models.ConnConnected})
	assert.Equal(t, models.ConnConnected, svc.ConnectionState())

	svc.handleFeedEvent(models.MFeedEvent{State: models.ConnHalted, Err: errors.New("gave up")})
	assert.Equal(t, models.ConnHalted, svc.ConnectionState())
	require.Len(t, svc.Errors(), 1)
	assert.Equal(t, "feed", svc.Errors()[0].Source)

	svc.Reconnect()
	assert.Equal(t, 1, feed.reconnects)
}

func TestSubscribeState_PublishesSnapshots(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{})
	sub := svc.SubscribeState()
	defer svc.UnsubscribeState(sub.ID)

	first := <-sub.C
	svc.Subscribe("X")
	svc.ApplyTicks([]models.MTradeTick{{Symbol: "X", Price: 10, Timestamp: 1}})

	var latest *models.MMarketState
	require.Eventually(t, func() bool {
		select {
		case latest = <-sub.C:
		default:
		}
		return latest != nil && len(latest.Quotes) == 1
	}, time.Second, time.Millisecond)
	assert.Greater(t, latest.Version, first.Version)
	assert.Empty(t, first.Quotes, "published snapshots are never mutated")
}

func TestRefresh_NewsEnrichment(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{News: stubNews{}})
	svc.Refresh(context.Background())

	news := svc.GetMarketNews()
	require.Len(t, news, 2)
	require.NotNil(t, news[0].Sentiment)
	assert.Equal(t, "positive", news[0].Sentiment.Sentiment)
	assert.Nil(t, news[1].Sentiment)
	require.NotNil(t, news[1].Impact)
}

func TestStart_RestoresSubscriptions(t *testing.T) {
	db := &stubDB{stored: []string{"msft"}}
	cfg := testConfig()
	cfg.MarketData.Symbols = []string{"AAPL"}
	svc := newTestService(t, cfg, Dependencies{Historical: newStubHistorical(), Database: db})

	require.NoError(t, svc.Start())
	assert.Equal(t, []string{"AAPL", "MSFT"}, svc.Subscriptions())
	assert.Equal(t, 2, svc.Scheduler.Jobs())

	waitForHistory(t, svc, "MSFT")
	db.mu.Lock()
	defer db.mu.Unlock()
	require.NotEmpty(t, db.saved)
	assert.Equal(t, []string{"AAPL", "MSFT"}, db.saved[len(db.saved)-1])
}

func TestDestroy_Idempotent(t *testing.T) {
	svc := NewMarketDataService(testConfig(), Dependencies{}, nil)
	sub := svc.SubscribeState()
	svc.Destroy()
	svc.Destroy()

	for range sub.C {
	}
	svc.Subscribe("X")
	assert.Empty(t, svc.Subscriptions())
}
