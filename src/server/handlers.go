package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"market-analytics/src/analysis/technical"
	"market-analytics/src/helpers"
	"market-analytics/src/models"
	"market-analytics/src/services/chart"

	"github.com/gin-gonic/gin"
)

const defaultTickLimit = 100

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func symbolParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
}

// -----------------------------------------------------------------------------

func notFound(c *gin.Context, what, symbol string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not available for " + symbol})
}

// -----------------------------------------------------------------------------

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var (
		validation *helpers.ValidationError
		source     *helpers.DataSourceError
		network    *helpers.NetworkError
	)
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &source), errors.As(err, &network):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// -----------------------------------------------------------------------------

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// -----------------------------------------------------------------------------
// Service status
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	md := s.Services.MarketData
	st := md.GetState()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   s.Connections(),
		"feed":          md.ConnectionState(),
		"version":       st.Version,
		"subscriptions": len(st.Subscriptions),
		"feed_attempts": md.FeedAttempts(),
		"dropped_ticks": md.DroppedTicks(),
		"tick_symbols":  md.Ticks.SymbolCount(),
		"heap_mb":       md.Ticks.GetProcessMemoryMB(),
		"latest_update": st.LastRefresh,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timeframes":  chart.Timeframes(),
		"indicators":  sortedKeys(technical.IndicatorTypes),
		"overlays":    sortedKeys(technical.OverlayTypes),
		"tick_policy": s.Config.MarketData.TickPolicy,
		"refresh":     s.Config.RefreshInterval().String(),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.Services.MarketData.GetState())
}

// -----------------------------------------------------------------------------

func (s *APIServer) getErrors(c *gin.Context) {
	c.JSON(http.StatusOK, s.Services.MarketData.Errors())
}

// -----------------------------------------------------------------------------
// Market data
// -----------------------------------------------------------------------------

func (s *APIServer) getQuote(c *gin.Context) {
	sym := symbolParam(c)
	q, ok := s.Services.MarketData.GetRealTimeQuote(sym)
	if !ok {
		notFound(c, "quote", sym)
		return
	}
	c.JSON(http.StatusOK, q)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHistory(c *gin.Context) {
	sym := symbolParam(c)
	h, ok := s.Services.MarketData.GetHistoricalData(sym)
	if !ok {
		notFound(c, "history", sym)
		return
	}
	c.JSON(http.StatusOK, h)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getIndicators(c *gin.Context) {
	sym := symbolParam(c)
	ind, ok := s.Services.MarketData.GetTechnicalIndicators(sym)
	if !ok {
		notFound(c, "indicators", sym)
		return
	}
	c.JSON(http.StatusOK, ind)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getFundamentals(c *gin.Context) {
	sym := symbolParam(c)
	f, ok := s.Services.MarketData.GetFundamentalData(sym)
	if !ok {
		notFound(c, "fundamentals", sym)
		return
	}
	c.JSON(http.StatusOK, f)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getTicks(c *gin.Context) {
	limit := defaultTickLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, helpers.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, s.Services.MarketData.GetRecentTicks(symbolParam(c), limit))
}

// -----------------------------------------------------------------------------

func (s *APIServer) getNews(c *gin.Context) {
	c.JSON(http.StatusOK, s.Services.MarketData.GetMarketNews())
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

func (s *APIServer) getSubscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subscriptions": s.Services.MarketData.Subscriptions()})
}

// -----------------------------------------------------------------------------

func (s *APIServer) subscribe(c *gin.Context) {
	sym := symbolParam(c)
	if sym == "" {
		writeError(c, helpers.NewValidationError("empty symbol"))
		return
	}
	s.Services.MarketData.Subscribe(sym)
	c.JSON(http.StatusAccepted, gin.H{"subscriptions": s.Services.MarketData.Subscriptions()})
}

// -----------------------------------------------------------------------------

func (s *APIServer) unsubscribe(c *gin.Context) {
	s.Services.MarketData.Unsubscribe(symbolParam(c))
	c.JSON(http.StatusOK, gin.H{"subscriptions": s.Services.MarketData.Subscriptions()})
}

// -----------------------------------------------------------------------------

func (s *APIServer) reconnectFeed(c *gin.Context) {
	s.Services.MarketData.Reconnect()
	c.JSON(http.StatusAccepted, gin.H{"feed": s.Services.MarketData.ConnectionState()})
}

// -----------------------------------------------------------------------------
// Chart
// -----------------------------------------------------------------------------

func (s *APIServer) getChartOptions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Services.Chart.GetOptions())
}

// -----------------------------------------------------------------------------

func (s *APIServer) updateChartOptions(c *gin.Context) {
	var patch models.MChartOptionsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, helpers.NewValidationError(err.Error()))
		return
	}
	if err := s.Services.Chart.UpdateOptions(patch); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Services.Chart.GetOptions())
}

// -----------------------------------------------------------------------------

// getChartData serves the cached record unless a different timeframe or a
// refresh is requested, in which case the data is loaded first.
func (s *APIServer) getChartData(c *gin.Context) {
	sym := symbolParam(c)
	timeframe := c.Query("timeframe")
	refresh := c.Query("refresh") == "true"

	if !refresh {
		if data, ok := s.Services.Chart.GetChartData(sym); ok && (timeframe == "" || timeframe == data.Timeframe) {
			c.JSON(http.StatusOK, data)
			return
		}
	}

	data, err := s.Services.Chart.LoadChartData(c.Request.Context(), sym, timeframe)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// -----------------------------------------------------------------------------

func (s *APIServer) addIndicator(c *gin.Context) {
	var ind models.MChartIndicator
	if err := c.ShouldBindJSON(&ind); err != nil {
		writeError(c, helpers.NewValidationError(err.Error()))
		return
	}
	if err := s.Services.Chart.AddIndicator(ind); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.Services.Chart.GetOptions())
}

// -----------------------------------------------------------------------------

func (s *APIServer) removeIndicator(c *gin.Context) {
	s.Services.Chart.RemoveIndicator(c.Param("id"))
	c.JSON(http.StatusOK, s.Services.Chart.GetOptions())
}

// -----------------------------------------------------------------------------

func (s *APIServer) addOverlay(c *gin.Context) {
	var ov models.MChartOverlay
	if err := c.ShouldBindJSON(&ov); err != nil {
		writeError(c, helpers.NewValidationError(err.Error()))
		return
	}
	if err := s.Services.Chart.AddOverlay(ov); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.Services.Chart.GetOptions())
}

// -----------------------------------------------------------------------------

func (s *APIServer) removeOverlay(c *gin.Context) {
	s.Services.Chart.RemoveOverlay(c.Param("id"))
	c.JSON(http.StatusOK, s.Services.Chart.GetOptions())
}

// -----------------------------------------------------------------------------

func (s *APIServer) addAnnotation(c *gin.Context) {
	var a models.MChartAnnotation
	if err := c.ShouldBindJSON(&a); err != nil {
		writeError(c, helpers.NewValidationError(err.Error()))
		return
	}
	if err := s.Services.Chart.AddAnnotation(a); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.Services.Chart.GetOptions())
}

// -----------------------------------------------------------------------------

func (s *APIServer) removeAnnotation(c *gin.Context) {
	s.Services.Chart.RemoveAnnotation(c.Param("id"))
	c.JSON(http.StatusOK, s.Services.Chart.GetOptions())
}

// -----------------------------------------------------------------------------
// Portfolio
// -----------------------------------------------------------------------------

// analyzePortfolio fills the history of every position (and the benchmark)
// that the request does not carry from the market data cache.
func (s *APIServer) analyzePortfolio(c *gin.Context) {
	var req models.MPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, helpers.NewValidationError(err.Error()))
		return
	}
	if len(req.Positions) == 0 {
		writeError(c, helpers.NewValidationError("at least one position is required"))
		return
	}

	history := make(map[string][]models.MCandle, len(req.Positions)+1)
	for sym, candles := range req.History {
		history[strings.ToUpper(sym)] = candles
	}

	symbols := make([]string, 0, len(req.Positions)+1)
	for i := range req.Positions {
		req.Positions[i].Symbol = strings.ToUpper(strings.TrimSpace(req.Positions[i].Symbol))
		symbols = append(symbols, req.Positions[i].Symbol)
	}
	if bench := s.Services.Portfolio.Benchmark; bench != "" {
		symbols = append(symbols, bench)
	}
	for _, sym := range symbols {
		if _, ok := history[sym]; ok {
			continue
		}
		if series, ok := s.Services.MarketData.GetHistoricalData(sym); ok {
			history[sym] = series.Candles
		}
	}

	c.JSON(http.StatusOK, s.Services.Portfolio.AnalyzePortfolio(req.Positions, history))
}
