package config

import (
	"fmt"
	"os"
	"time"

	"market-analytics/src/models"
	"market-analytics/src/utils"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Default returns a configuration usable without a file
func Default() *Config {
	return &Config{MConfig: &models.MConfig{
		Name:     "market-analytics",
		Host:     "127.0.0.1",
		Port:     8080,
		LogLevel: "INFO",
		Storage: models.MStorageConfig{
			DBType:        "sqlite",
			DBPath:        "market-analytics.db",
			RetentionDays: 30,
			CleanupCron:   "30 3 * * *",
		},
		Network: models.MNetworkConfig{
			RequestTimeout: 10,
			MaxRetries:     3,
			RetryDelayMs:   1000,
			RateLimit:      5,
			Concurrency:    4,
			UserAgent:      "market-analytics/1.0",
		},
		Feed: models.MFeedConfig{
			URL:                  "wss://ws.finnhub.io",
			MaxReconnectAttempts: 5,
			ReconnectDelayMs:     1000,
		},
		MarketData: models.MMarketDataConfig{
			BaseURL:               "https://query1.finance.yahoo.com",
			RefreshInterval:       "5m",
			HistoricalInterval:    "1d",
			HistoricalRange:       "1y",
			ErrorLogCapacity:      utils.DefaultErrorLogCap,
			TickHistory:           utils.DefaultTickHistory,
			MaxMemoryMB:           512,
			TickPolicy:            "arrival",
			ApplyAfterUnsubscribe: true,
			SMAPeriod:             20,
			EMAPeriod:             20,
			RSIPeriod:             14,
		},
		News: models.MNewsConfig{
			Limit: 50,
		},
		Portfolio: models.MPortfolioConfig{
			RiskFreeRate: 0.02,
			Benchmark:    "SPY",
		},
		Chart: models.MChartConfig{
			Theme:        models.ThemeLight,
			Timeframe:    "1d",
			ChartType:    "candlestick",
			BaseInterval: "1d",
			Range:        "1y",
		},
	}}
}

// -----------------------------------------------------------------------------

// NewConfig creates a Config from a YAML file layered over Default()
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal over defaults so omitted keys keep their default
	config := Default()
	if err := yaml.Unmarshal(data, config.MConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Secrets from the environment
	config.applyEnv()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() {
	if v := os.Getenv("FEED_TOKEN"); v != "" {
		c.Feed.Token = v
	}
	if v := os.Getenv("DB_CONNECTION_STRING"); v != "" {
		c.Storage.DBConnectionString = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		c.News.APIKey = v
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported database type: %q", c.Storage.DBType)
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.RetryDelayMs < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	// Feed
	if c.Feed.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts cannot be negative")
	}

	// Market data
	if _, err := time.ParseDuration(c.MarketData.RefreshInterval); err != nil {
		return fmt.Errorf("invalid refresh interval %q: %w", c.MarketData.RefreshInterval, err)
	}
	if c.MarketData.MaxMemoryMB < 0 {
		return fmt.Errorf("max memory cannot be negative")
	}
	if c.MarketData.ErrorLogCapacity <= 0 {
		return fmt.Errorf("error log capacity must be greater than 0")
	}
	switch c.MarketData.TickPolicy {
	case "arrival", "drop_stale":
	default:
		return fmt.Errorf("unknown tick policy: %q", c.MarketData.TickPolicy)
	}

	// Chart
	if c.Chart.Theme != models.ThemeLight && c.Chart.Theme != models.ThemeDark {
		return fmt.Errorf("unknown chart theme: %q", c.Chart.Theme)
	}

	return nil
}

// -----------------------------------------------------------------------------

// RefreshInterval returns the parsed periodic refresh interval
func (c *Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.MarketData.RefreshInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
