package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-analytics/src/analysis/portfolio"
	"market-analytics/src/config"
	"market-analytics/src/helpers"
	"market-analytics/src/models"
	"market-analytics/src/services/chart"
	"market-analytics/src/services/marketdata"
)

type stubSource struct {
	fail atomic.Bool
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchAggregates(ctx context.Context, symbol, interval, rng string) ([]models.MCandle, error) {
	if s.fail.Load() {
		return nil, helpers.NewDataSourceError("upstream down", nil)
	}
	return dailyCandles(30), nil
}

func dailyCandles(n int) []models.MCandle {
	candles := make([]models.MCandle, n)
	for i := range candles {
		p := 100 + float64(i%5)
		candles[i] = models.MCandle{
			Timestamp: 1704067200 + int64(i)*86400,
			Open:      p, High: p + 1, Low: p - 1, Close: p, Volume: 1000,
		}
	}
	return candles
}

type testEnv struct {
	srv    *APIServer
	md     *marketdata.MarketDataService
	chart  *chart.ChartService
	source *stubSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Network.MaxRetries = 1
	cfg.Network.RetryDelayMs = 1

	src := &stubSource{}
	md := marketdata.NewMarketDataService(cfg, marketdata.Dependencies{Historical: src}, nil)
	ch := chart.NewChartService(cfg, src, nil)
	pf := portfolio.NewPortfolioAnalysisService(cfg.Portfolio, nil)

	srv := NewAPIServer(cfg, Services{MarketData: md, Chart: ch, Portfolio: pf}, nil)
	t.Cleanup(func() {
		srv.Stop()
		md.Destroy()
		ch.Destroy()
	})
	return &testEnv{srv: srv, md: md, chart: ch, source: src}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// -----------------------------------------------------------------------------
// REST
// -----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, models.ConnDisconnected, body["feed"])
	assert.EqualValues(t, 0, body["connections"])
	assert.EqualValues(t, 0, body["feed_attempts"])
	assert.EqualValues(t, 0, body["tick_symbols"])

	env.md.Subscribe("AAPL")
	env.md.ApplyTicks([]models.MTradeTick{{Symbol: "AAPL", Price: 100, Volume: 1, Timestamp: 1}})

	body = decode[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/health", nil))
	assert.EqualValues(t, 1, body["tick_symbols"])
	assert.Greater(t, body["heap_mb"], 0.0)
}

func TestConfigListsCapabilities(t *testing.T) {
	env := newTestEnv(t)

	body := decode[struct {
		Timeframes []string `json:"timeframes"`
		Indicators []string `json:"indicators"`
		Overlays   []string `json:"overlays"`
		TickPolicy string   `json:"tick_policy"`
	}](t, env.do(t, http.MethodGet, "/api/config", nil))
	assert.Contains(t, body.Timeframes, "1w")
	assert.Contains(t, body.Indicators, "rsi")
	assert.Contains(t, body.Overlays, "fibonacci")
	assert.Equal(t, marketdata.TickPolicyArrival, body.TickPolicy)
}

func TestQuoteLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/quotes/AAPL", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/subscriptions/aapl", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"AAPL"}, decode[map[string][]string](t, rec)["subscriptions"])

	env.md.ApplyTicks([]models.MTradeTick{{Symbol: "AAPL", Price: 100, Volume: 1, Timestamp: 1}})
	env.md.ApplyTicks([]models.MTradeTick{{Symbol: "AAPL", Price: 105, Volume: 1, Timestamp: 2}})

	rec = env.do(t, http.MethodGet, "/api/quotes/aapl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[models.MRealTimeQuote](t, rec)
	assert.Equal(t, 105.0, q.Price)
	assert.InDelta(t, 5.0, q.ChangePercent, 1e-9)

	ticks := decode[[]models.MTradeTick](t, env.do(t, http.MethodGet, "/api/ticks/AAPL?limit=1", nil))
	require.Len(t, ticks, 1)
	assert.Equal(t, 105.0, ticks[0].Price)

	rec = env.do(t, http.MethodGet, "/api/ticks/AAPL?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/subscriptions/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]string](t, rec)["subscriptions"])
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/quotes/AAPL", nil).Code)
}

func TestHistoryAndIndicatorsAfterRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.md.Subscribe("MSFT")

	require.Eventually(t, func() bool {
		_, ok := env.md.GetTechnicalIndicators("MSFT")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	rec := env.do(t, http.MethodGet, "/api/history/MSFT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.MHistoricalSeries](t, rec).Candles, 30)

	rec = env.do(t, http.MethodGet, "/api/indicators/MSFT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sma"`)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/fundamentals/MSFT", nil).Code)
}

func TestChartRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/chart/data/AAPL?timeframe=1w", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode[models.MChartData](t, rec)
	assert.Equal(t, "1w", data.Timeframe)
	assert.NotEmpty(t, data.Candles)

	rec = env.do(t, http.MethodGet, "/api/chart/data/AAPL?timeframe=2y", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.source.fail.Store(true)
	rec = env.do(t, http.MethodGet, "/api/chart/data/AAPL?refresh=true", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// cached record is still served
	rec = env.do(t, http.MethodGet, "/api/chart/data/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1w", decode[models.MChartData](t, rec).Timeframe)
}

func TestChartOptionsRoutes(t *testing.T) {
	env := newTestEnv(t)

	dark := models.ThemeDark
	rec := env.do(t, http.MethodPut, "/api/chart/options", models.MChartOptionsPatch{Theme: &dark})
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[models.MChartOptions](t, rec)
	assert.Equal(t, models.ThemeDark, opts.Theme)
	assert.Equal(t, chart.ThemeColors(models.ThemeDark), opts.Colors)

	bad := "sepia"
	rec = env.do(t, http.MethodPut, "/api/chart/options", models.MChartOptionsPatch{Theme: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chart/indicators", models.MChartIndicator{ID: "rsi-14", Type: "rsi", Period: 14, Visible: true})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, decode[models.MChartOptions](t, rec).Indicators, 1)

	rec = env.do(t, http.MethodPost, "/api/chart/indicators", models.MChartIndicator{ID: "rsi-14", Type: "rsi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chart/overlays", models.MChartOverlay{ID: "fib", Type: "fibonacci"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chart/annotations", models.MChartAnnotation{ID: "n1", Type: "text", Text: "earnings"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/chart/indicators/rsi-14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.MChartOptions](t, rec).Indicators)

	rec = env.do(t, http.MethodDelete, "/api/chart/overlays/unknown", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	opts = decode[models.MChartOptions](t, env.do(t, http.MethodDelete, "/api/chart/annotations/n1", nil))
	assert.Empty(t, opts.Annotations)
	assert.Len(t, opts.Overlays, 1)
}

func TestAnalyzePortfolio(t *testing.T) {
	env := newTestEnv(t)

	req := models.MPortfolioRequest{
		Positions: []models.MPosition{
			{Symbol: "aapl", Quantity: 10, AveragePrice: 100, CurrentPrice: 110, Sector: "Tech"},
		},
		History: map[string][]models.MCandle{"AAPL": dailyCandles(30)},
	}
	rec := env.do(t, http.MethodPost, "/api/portfolio/analyze", req)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decode[models.MPortfolioStats](t, rec)
	assert.InDelta(t, 1100, stats.TotalValue, 1e-9)
	assert.InDelta(t, 1000, stats.TotalCost, 1e-9)
	assert.InDelta(t, 0.1, stats.TotalReturn, 1e-9)
	assert.Len(t, stats.DailyReturns, 29)
	assert.InDelta(t, 1.0, stats.SectorExposure["Tech"], 1e-9)

	rec = env.do(t, http.MethodPost, "/api/portfolio/analyze", models.MPortfolioRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5173")
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://127.0.0.1:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

// -----------------------------------------------------------------------------
// WebSocket
// -----------------------------------------------------------------------------

func dialStream(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	env.srv.startStreaming()
	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(models.MStreamMessage) bool) models.MStreamMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg models.MStreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestStream_InitialThenUpdates(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env)

	first := readUntil(t, conn, func(m models.MStreamMessage) bool { return true })
	assert.Equal(t, models.StreamInitial, first.Type)
	require.NotNil(t, first.State)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: "subscribe", Symbols: []string{"tsla"}}))
	readUntil(t, conn, func(m models.MStreamMessage) bool {
		return m.Type == models.StreamInitial && m.State != nil && len(m.State.Subscriptions) == 1
	})
	env.md.ApplyTicks([]models.MTradeTick{{Symbol: "TSLA", Price: 250, Volume: 3, Timestamp: 10}})

	msg := readUntil(t, conn, func(m models.MStreamMessage) bool {
		if m.Type != models.StreamUpdate || m.State == nil {
			return false
		}
		_, ok := m.State.Quotes["TSLA"]
		return ok
	})
	assert.Equal(t, 250.0, msg.State.Quotes["TSLA"].Price)
	assert.Contains(t, msg.State.Subscriptions, "TSLA")
	assert.Equal(t, 1, env.srv.Connections())
}

func TestStream_WatchFiltersSymbols(t *testing.T) {
	env := newTestEnv(t)
	env.md.Subscribe("AAPL")
	env.md.Subscribe("MSFT")
	env.md.ApplyTicks([]models.MTradeTick{
		{Symbol: "AAPL", Price: 1, Timestamp: 1},
		{Symbol: "MSFT", Price: 2, Timestamp: 1},
	})

	conn := dialStream(t, env)
	readUntil(t, conn, func(m models.MStreamMessage) bool { return m.Type == models.StreamInitial })

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: "watch", Symbols: []string{"msft"}}))
	msg := readUntil(t, conn, func(m models.MStreamMessage) bool { return m.Type == models.StreamInitial })

	require.NotNil(t, msg.State)
	assert.Contains(t, msg.State.Quotes, "MSFT")
	assert.NotContains(t, msg.State.Quotes, "AAPL")
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, msg.State.Subscriptions)
}

func TestStream_UnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: "bogus"}))
	msg := readUntil(t, conn, func(m models.MStreamMessage) bool { return m.Type == models.StreamError })
	assert.Contains(t, msg.Message, "bogus")
}

func TestStream_ThemeCommandReachesChart(t *testing.T) {
	env := newTestEnv(t)
	env.chart.WatchTheme(env.srv.ThemePreferences())
	conn := dialStream(t, env)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: "theme", Theme: "purple"}))
	msg := readUntil(t, conn, func(m models.MStreamMessage) bool { return m.Type == models.StreamError })
	assert.Contains(t, msg.Message, "purple")
	assert.Equal(t, models.ThemeLight, env.chart.GetOptions().Theme)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: "theme", Theme: models.ThemeDark}))
	require.Eventually(t, func() bool {
		return env.chart.GetOptions().Theme == models.ThemeDark
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, chart.ThemeColors(models.ThemeDark), env.chart.GetOptions().Colors)
}

func TestStopDisconnectsClients(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env)
	readUntil(t, conn, func(m models.MStreamMessage) bool { return true })

	require.NoError(t, env.srv.Stop())
	require.NoError(t, env.srv.Stop())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcastIgnoresForeignPayloads(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Broadcast(map[string]interface{}{"type": "UPDATE"})
	assert.Empty(t, env.srv.broadcast)
}
