// Package server exposes the analytics services over REST and streams market
// state snapshots to websocket clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"market-analytics/src/analysis/portfolio"
	"market-analytics/src/config"
	"market-analytics/src/logger"
	"market-analytics/src/models"
	"market-analytics/src/pubsub"
	"market-analytics/src/services/chart"
	"market-analytics/src/services/marketdata"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Services are the engine components served over the API. MarketData is
// required; a nil Chart or Portfolio disables its routes.
type Services struct {
	MarketData *marketdata.MarketDataService
	Chart      *chart.ChartService
	Portfolio  *portfolio.PortfolioAnalysisService
}

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config   *config.Config
	Services Services
	Logger   *logger.Logger
	engine   *gin.Engine
	httpSrv  *http.Server

	// WebSocket clients, owned by the hub loop
	clients     map[*Client]struct{}
	broadcast   chan *models.MMarketState
	direct      chan directMessage
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	themes      chan string
	connections atomic.Int64

	// Local cache of the last broadcast snapshot
	latestState *models.MMarketState
	stateMutex  sync.RWMutex

	stateSub  *pubsub.Subscription[*models.MMarketState]
	wg        sync.WaitGroup
	hubOnce   sync.Once
	closeOnce sync.Once
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *config.Config, services Services, log *logger.Logger) *APIServer {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:   cfg,
		Services: services,
		Logger:   log.Named("APIServer"),
		engine:   gin.New(),
		clients:  make(map[*Client]struct{}),
		// Buffered so a burst of snapshots does not block the publisher
		broadcast:  make(chan *models.MMarketState, 256),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		themes:     make(chan string, 8),
	}
	if services.MarketData != nil {
		s.latestState = services.MarketData.GetState()
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), corsMiddleware)
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.engine,
	}
	return s
}

// -----------------------------------------------------------------------------

func corsMiddleware(c *gin.Context) {
	origin := c.Request.Header.Get("Origin")
	if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
	}
	c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// -----------------------------------------------------------------------------

func (s *APIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/state", s.getState)
	api.GET("/errors", s.getErrors)

	api.GET("/quotes/:symbol", s.getQuote)
	api.GET("/history/:symbol", s.getHistory)
	api.GET("/indicators/:symbol", s.getIndicators)
	api.GET("/fundamentals/:symbol", s.getFundamentals)
	api.GET("/ticks/:symbol", s.getTicks)
	api.GET("/news", s.getNews)

	api.GET("/subscriptions", s.getSubscriptions)
	api.POST("/subscriptions/:symbol", s.subscribe)
	api.DELETE("/subscriptions/:symbol", s.unsubscribe)
	api.POST("/feed/reconnect", s.reconnectFeed)

	if s.Services.Chart != nil {
		api.GET("/chart/options", s.getChartOptions)
		api.PUT("/chart/options", s.updateChartOptions)
		api.GET("/chart/data/:symbol", s.getChartData)
		api.POST("/chart/indicators", s.addIndicator)
		api.DELETE("/chart/indicators/:id", s.removeIndicator)
		api.POST("/chart/overlays", s.addOverlay)
		api.DELETE("/chart/overlays/:id", s.removeOverlay)
		api.POST("/chart/annotations", s.addAnnotation)
		api.DELETE("/chart/annotations/:id", s.removeAnnotation)
	}

	if s.Services.Portfolio != nil {
		api.POST("/portfolio/analyze", s.analyzePortfolio)
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler exposes the router, mostly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

// ThemePreferences streams the theme preferences reported by websocket
// clients. It is meant to feed ChartService.WatchTheme.
func (s *APIServer) ThemePreferences() <-chan string {
	return s.themes
}

// -----------------------------------------------------------------------------

// Start runs the hub and blocks serving HTTP until Stop is called.
func (s *APIServer) Start() error {
	s.startStreaming()
	s.Logger.Info("Starting server on %s", s.httpSrv.Addr)

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// startStreaming launches the hub loop and, when a market data service is
// wired, the goroutine forwarding its snapshots to the hub.
func (s *APIServer) startStreaming() {
	s.hubOnce.Do(func() {
		s.wg.Add(1)
		go s.handleWebsockets()

		if md := s.Services.MarketData; md != nil {
			s.stateSub = md.SubscribeState()
			s.wg.Add(1)
			go s.forwardState(s.stateSub)
		}
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) forwardState(sub *pubsub.Subscription[*models.MMarketState]) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case st, ok := <-sub.C:
			if !ok {
				return
			}
			s.Broadcast(st)
		}
	}
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP listener down and disconnects every websocket client.
// Safe to call twice.
func (s *APIServer) Stop() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.stateSub != nil {
			s.Services.MarketData.UnsubscribeState(s.stateSub.ID)
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = s.httpSrv.Shutdown(ctx)

		s.wg.Wait()
		s.Logger.Info("Server stopped")
	})
	return err
}

// -----------------------------------------------------------------------------

// Connections is the number of registered websocket clients.
func (s *APIServer) Connections() int {
	return int(s.connections.Load())
}

// -----------------------------------------------------------------------------

func (s *APIServer) latest() *models.MMarketState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.latestState
}
