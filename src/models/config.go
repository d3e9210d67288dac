package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level"`
	Storage    MStorageConfig    `yaml:"storage"`
	Network    MNetworkConfig    `yaml:"network"`
	Feed       MFeedConfig       `yaml:"feed"`
	MarketData MMarketDataConfig `yaml:"market_data"`
	News       MNewsConfig       `yaml:"news"`
	Portfolio  MPortfolioConfig  `yaml:"portfolio"`
	Chart      MChartConfig      `yaml:"chart"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite, postgres, none
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
	CleanupCron        string `yaml:"cleanup_cron"`
}

type MNetworkConfig struct {
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"` // seconds, per attempt
	MaxRetries     int      `yaml:"retries"`
	RetryDelayMs   int      `yaml:"retry_delay_ms"`
	RateLimit      float64  `yaml:"rate_limit"` // requests per second, 0 disables
	UserAgent      string   `yaml:"user_agent"`
	Concurrency    int      `yaml:"concurrent_requests"`
}

type MFeedConfig struct {
	URL                  string `yaml:"url"`
	Token                string `yaml:"token"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
	ReconnectDelayMs     int    `yaml:"reconnect_delay_ms"`
}

type MMarketDataConfig struct {
	BaseURL               string   `yaml:"base_url"`
	Symbols               []string `yaml:"symbols"`
	RefreshInterval       string   `yaml:"refresh_interval"`
	HistoricalInterval    string   `yaml:"historical_interval"`
	HistoricalRange       string   `yaml:"historical_range"`
	ErrorLogCapacity      int      `yaml:"error_log_capacity"`
	TickHistory           int      `yaml:"tick_history"`
	MaxMemoryMB           int      `yaml:"max_memory_mb"` // 0 disables the heap check
	SkipClosedMarkets     bool     `yaml:"skip_closed_markets"`
	TickPolicy            string   `yaml:"tick_policy"` // arrival, drop_stale
	ApplyAfterUnsubscribe bool     `yaml:"apply_after_unsubscribe"`
	SMAPeriod             int      `yaml:"sma_period"`
	EMAPeriod             int      `yaml:"ema_period"`
	RSIPeriod             int      `yaml:"rsi_period"`
}

type MNewsConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Limit  int    `yaml:"limit"`
}

type MPortfolioConfig struct {
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	Benchmark    string  `yaml:"benchmark"`
}

type MChartConfig struct {
	Theme        string `yaml:"theme"`
	Timeframe    string `yaml:"timeframe"`
	ChartType    string `yaml:"chart_type"`
	BaseInterval string `yaml:"base_interval"`
	Range        string `yaml:"range"`
}
