package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-analytics/src/analysis/portfolio"
	"market-analytics/src/config"
	datasource "market-analytics/src/data_source"
	"market-analytics/src/data_source/yahoo"
	"market-analytics/src/feed"
	"market-analytics/src/interfaces"
	"market-analytics/src/logger"
	"market-analytics/src/network"
	"market-analytics/src/news"
	"market-analytics/src/server"
	"market-analytics/src/services/chart"
	"market-analytics/src/services/marketdata"
	"market-analytics/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Storage (optional)
	db, err := storage.NewDatabase(cfg.Storage, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if db != nil {
		if err := db.Initialize(); err != nil {
			appLogger.Critical("Failed to migrate db: %v", err)
		}
		defer db.Close()

		// Postgres symbol lists may reference other tables
		if pg, ok := db.(*storage.PostgresDB); ok {
			symbols, err := pg.FilterAndRegisterSymbols(cfg.MarketData.Symbols)
			if err != nil {
				appLogger.Warning("Symbol registration incomplete: %v", err)
			}
			cfg.MarketData.Symbols = symbols
		}
	}

	// 2. Transport and sources
	var netMgr interfaces.INetworkManager = network.NewAsyncNetworkManager(cfg.Network, appLogger)
	yahooSource := yahoo.NewYahooFinanceSource(cfg.MarketData.BaseURL, netMgr, appLogger)

	sources := []interfaces.IHistoricalSource{yahooSource}
	if db != nil {
		// Stored candles serve as fallback while the REST source is down
		sources = append(sources, storage.NewSeriesSource(db))
	}
	historical := datasource.NewMultiSourceManager(sources, appLogger)

	deps := marketdata.Dependencies{
		Historical:   historical,
		Fundamentals: yahooSource,
		Database:     db,
	}
	if cfg.Feed.URL != "" {
		deps.Feed = feed.NewLiveFeed(cfg.Feed, appLogger)
	}
	if cfg.News.URL != "" {
		deps.News = news.NewNewsClient(cfg.News, netMgr, appLogger)
	}

	// 3. Services
	marketData := marketdata.NewMarketDataService(cfg, deps, appLogger)
	charts := chart.NewChartService(cfg, historical, appLogger)
	portfolios := portfolio.NewPortfolioAnalysisService(cfg.Portfolio, appLogger)

	if err := marketData.Start(); err != nil {
		appLogger.Critical("Failed to start market data service: %v", err)
	}

	// 4. API server
	apiServer := server.NewAPIServer(cfg, server.Services{
		MarketData: marketData,
		Chart:      charts,
		Portfolio:  portfolios,
	}, appLogger)

	// Clients report their light/dark preference over the websocket
	charts.WatchTheme(apiServer.ThemePreferences())

	var srv interfaces.IDataExchanger = apiServer

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// 5. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}

	if err := srv.Stop(); err != nil {
		appLogger.Warning("Server shutdown: %v", err)
	}
	charts.Destroy()
	marketData.Destroy()
	appLogger.Info("Bye")
}
