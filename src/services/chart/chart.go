// Package chart composes historical candles and technical analysis into
// renderable chart records and owns the user chart options.
package chart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"market-analytics/src/analysis"
	"market-analytics/src/analysis/technical"
	"market-analytics/src/config"
	"market-analytics/src/helpers"
	"market-analytics/src/interfaces"
	"market-analytics/src/logger"
	"market-analytics/src/models"
	"market-analytics/src/pubsub"
)

// fetchPlan is how a chart timeframe is obtained from the historical source.
type fetchPlan struct {
	interval string
	rng      string
}

// Timeframes the source serves natively; anything else is resampled.
var fetchPlans = map[string]fetchPlan{
	"1m":  {"1m", "5d"},
	"5m":  {"5m", "1mo"},
	"15m": {"15m", "1mo"},
	"30m": {"30m", "1mo"},
	"1h":  {"1h", "3mo"},
	"4h":  {"1h", "6mo"},
	"1d":  {"1d", ""},
	"1w":  {"1d", "5y"},
	"1mo": {"1d", "10y"},
}

var timeframeOrder = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w", "1mo"}

// Timeframes lists the supported chart timeframes, shortest first.
func Timeframes() []string {
	return append([]string(nil), timeframeOrder...)
}

// -----------------------------------------------------------------------------

type ChartService struct {
	Config    *config.Config
	Source    interfaces.IHistoricalSource
	Technical *technical.TechnicalAnalysisService
	Resampler *analysis.TimeSeriesResampler
	Retrier   *helpers.Retrier
	Logger    *logger.Logger

	broker   *pubsub.Broker[*models.MChartState]
	snapshot atomic.Pointer[models.MChartState]
	mu       sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// -----------------------------------------------------------------------------

func NewChartService(cfg *config.Config, source interfaces.IHistoricalSource, log *logger.Logger) *ChartService {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	log = log.Named("Chart")

	theme := cfg.Chart.Theme
	if theme != models.ThemeDark {
		theme = models.ThemeLight
	}
	timeframe := cfg.Chart.Timeframe
	if _, ok := fetchPlans[timeframe]; !ok {
		timeframe = "1d"
	}
	chartType := cfg.Chart.ChartType
	if !chartTypes[chartType] {
		chartType = "candlestick"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &ChartService{
		Config:    cfg,
		Source:    source,
		Technical: technical.NewTechnicalAnalysisService(cfg.MarketData),
		Resampler: &analysis.TimeSeriesResampler{},
		Retrier: helpers.NewRetrier(
			cfg.Network.MaxRetries,
			time.Duration(cfg.Network.RetryDelayMs)*time.Millisecond,
			time.Duration(cfg.Network.RequestTimeout)*time.Second,
			log,
		),
		Logger: log,
		broker: pubsub.NewBroker[*models.MChartState](),
		ctx:    ctx,
		cancel: cancel,
	}

	initial := &models.MChartState{
		Options: models.MChartOptions{
			Theme:       theme,
			Timeframe:   timeframe,
			ChartType:   chartType,
			Indicators:  []models.MChartIndicator{},
			Overlays:    []models.MChartOverlay{},
			Annotations: []models.MChartAnnotation{},
			Colors:      ThemeColors(theme),
		},
		Data: map[string]models.MChartData{},
	}
	s.snapshot.Store(initial)
	s.broker.Publish(initial)
	return s
}

// -----------------------------------------------------------------------------

// GetState returns the current snapshot. It must not be mutated.
func (s *ChartService) GetState() *models.MChartState {
	return s.snapshot.Load()
}

// -----------------------------------------------------------------------------

func (s *ChartService) GetOptions() models.MChartOptions {
	return s.GetState().Options
}

// -----------------------------------------------------------------------------

func (s *ChartService) GetChartData(symbol string) (models.MChartData, bool) {
	d, ok := s.GetState().Data[strings.ToUpper(strings.TrimSpace(symbol))]
	return d, ok
}

// -----------------------------------------------------------------------------

func (s *ChartService) SubscribeState() *pubsub.Subscription[*models.MChartState] {
	return s.broker.Subscribe()
}

// -----------------------------------------------------------------------------

func (s *ChartService) UnsubscribeState(id string) {
	s.broker.Unsubscribe(id)
}

// -----------------------------------------------------------------------------

// LoadChartData fetches candles for symbol at timeframe, computes indicators
// and overlays, and publishes the record as the active chart. An empty
// timeframe uses the configured one. On failure the previous record is kept.
func (s *ChartService) LoadChartData(ctx context.Context, symbol, timeframe string) (models.MChartData, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return models.MChartData{}, helpers.NewValidationError("empty symbol")
	}
	if timeframe == "" {
		timeframe = s.GetOptions().Timeframe
	}
	plan, ok := fetchPlans[timeframe]
	if !ok {
		return models.MChartData{}, helpers.NewValidationError(fmt.Sprintf("unsupported timeframe %q", timeframe))
	}
	if plan.rng == "" {
		plan.rng = s.Config.Chart.Range
	}
	if s.Source == nil {
		return models.MChartData{}, helpers.NewDataSourceError("no historical source configured", nil)
	}

	s.commit(func(st *models.MChartState) bool {
		st.Loading = true
		st.Error = ""
		return true
	})

	candles, err := helpers.Retry(ctx, s.Retrier, "chart "+sym, func(ctx context.Context) ([]models.MCandle, error) {
		return s.Source.FetchAggregates(ctx, sym, plan.interval, plan.rng)
	})
	if err == nil && plan.interval != timeframe {
		candles, err = s.Resampler.ResampleCandles(candles, timeframe)
	}
	if err != nil {
		s.commit(func(st *models.MChartState) bool {
			st.Loading = false
			st.Error = err.Error()
			return true
		})
		s.Logger.Warning("Failed to load chart %s/%s: %v", sym, timeframe, err)
		return models.MChartData{}, err
	}

	var record models.MChartData
	s.commit(func(st *models.MChartState) bool {
		record = s.build(sym, timeframe, candles, st.Options)
		st.Data[sym] = record
		st.ActiveSymbol = sym
		st.Loading = false
		st.Error = ""
		return true
	})
	s.Logger.Debug("Loaded chart %s/%s with %d candles", sym, timeframe, len(candles))
	return record, nil
}

// -----------------------------------------------------------------------------

// build composes one chart record from candles under opts
func (s *ChartService) build(symbol, timeframe string, candles []models.MCandle, opts models.MChartOptions) models.MChartData {
	set := s.Technical.ComputeIndicatorSet(symbol, candles)
	indicators := map[string]models.MSeries{
		"sma":              set.SMA,
		"ema":              set.EMA,
		"rsi":              set.RSI,
		"macd.line":        set.MACD.Line,
		"macd.signal":      set.MACD.Signal,
		"macd.histogram":   set.MACD.Histogram,
		"bollinger.upper":  set.Bollinger.Upper,
		"bollinger.middle": set.Bollinger.Middle,
		"bollinger.lower":  set.Bollinger.Lower,
	}

	for _, ind := range opts.Indicators {
		if !ind.Visible {
			continue
		}
		series, err := s.Technical.ComputeIndicator(ind, candles)
		if err != nil {
			s.Logger.Warning("Indicator %s: %v", ind.ID, err)
			continue
		}
		for k, v := range series {
			indicators[k] = v
		}
	}

	overlays := make([]models.MOverlayData, 0, len(opts.Overlays))
	for _, ov := range opts.Overlays {
		data, err := s.Technical.ComputeOverlay(ov, candles)
		if err != nil {
			s.Logger.Warning("Overlay %s: %v", ov.ID, err)
			continue
		}
		overlays = append(overlays, data)
	}

	annotations := make([]models.MChartAnnotation, len(opts.Annotations))
	copy(annotations, opts.Annotations)

	return models.MChartData{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Candles:     candles,
		Indicators:  indicators,
		Overlays:    overlays,
		Annotations: annotations,
	}
}

// -----------------------------------------------------------------------------

// commit derives and publishes the next snapshot. When mutate reports no
// change the draft is discarded and nothing is published.
func (s *ChartService) commit(mutate func(st *models.MChartState) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snapshot.Load()
	next := *cur
	next.Data = make(map[string]models.MChartData, len(cur.Data))
	for k, v := range cur.Data {
		next.Data[k] = v
	}
	next.Options.Indicators = append([]models.MChartIndicator{}, cur.Options.Indicators...)
	next.Options.Overlays = append([]models.MChartOverlay{}, cur.Options.Overlays...)
	next.Options.Annotations = append([]models.MChartAnnotation{}, cur.Options.Annotations...)

	if !mutate(&next) {
		return
	}

	s.snapshot.Store(&next)
	s.broker.Publish(&next)
}

// -----------------------------------------------------------------------------

// rebuild recomputes every loaded record from its cached candles after
// an options change.
func (s *ChartService) rebuild(st *models.MChartState) {
	for sym, d := range st.Data {
		st.Data[sym] = s.build(sym, d.Timeframe, d.Candles, st.Options)
	}
}

// -----------------------------------------------------------------------------

// Destroy stops the theme watcher and closes state subscriptions.
func (s *ChartService) Destroy() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.broker.Close()
		s.Logger.Info("Chart service destroyed")
	})
}
