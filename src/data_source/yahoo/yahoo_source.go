package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"market-analytics/src/helpers"
	"market-analytics/src/interfaces"
	"market-analytics/src/logger"
	"market-analytics/src/models"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// YahooFinanceSource serves historical aggregates from the chart endpoint.
// Fundamentals live in fundamentals.go.
type YahooFinanceSource struct {
	BaseURL string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) Name() string {
	return "yahoo"
}

// -----------------------------------------------------------------------------

func NewYahooFinanceSource(baseURL string, netMgr interfaces.INetworkManager, log *logger.Logger) *YahooFinanceSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &YahooFinanceSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Network: netMgr,
		Logger:  log.Named("YahooFinanceSource"),
	}
}

// -----------------------------------------------------------------------------

// FetchAggregates fetches candles for symbol at interval over rng.
func (s *YahooFinanceSource) FetchAggregates(ctx context.Context, symbol, interval, rng string) ([]models.MCandle, error) {
	params := map[string]string{
		"interval":       yahooInterval(interval),
		"range":          rng,
		"includePrePost": "false",
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", s.BaseURL, url.PathEscape(symbol))
	respBytes, err := s.Network.Get(ctx, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("network error for %s: %w", symbol, err)
	}

	return s.parseChartResponse(symbol, respBytes)
}

// -----------------------------------------------------------------------------

// yahooInterval maps chart timeframes onto the endpoint's interval names.
func yahooInterval(interval string) string {
	switch interval {
	case "1w":
		return "1wk"
	case "1h":
		return "60m"
	default:
		return interval
	}
}

// -----------------------------------------------------------------------------

type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				ExchangeName       string  `json:"exchangeName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				DataGranularity    string  `json:"dataGranularity"`
				Range              string  `json:"range"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High   []*float64 `json:"high"` // null for missing bars
					Low    []*float64 `json:"low"`
					Open   []*float64 `json:"open"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) parseChartResponse(symbol string, data []byte) ([]models.MCandle, error) {
	var resp YahooChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, helpers.NewDataSourceError("json unmarshal failed", err)
	}

	if resp.Chart.Error != nil {
		return nil, helpers.NewDataSourceError(
			fmt.Sprintf("yahoo api error: %s - %s", resp.Chart.Error.Code, resp.Chart.Error.Description), nil)
	}

	if len(resp.Chart.Result) == 0 {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("no result in response for %s", symbol), nil)
	}

	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		// valid symbol without bars in range
		return []models.MCandle{}, nil
	}

	if len(result.Indicators.Quote) == 0 {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("no quote data in response for %s", symbol), nil)
	}
	quote := result.Indicators.Quote[0]

	n := len(result.Timestamp)
	if len(quote.Close) != n || len(quote.Open) != n || len(quote.High) != n ||
		len(quote.Low) != n || len(quote.Volume) != n {
		s.Logger.Warning("Data alignment error for %s: mismatched array lengths", symbol)
		return nil, helpers.NewDataSourceError(fmt.Sprintf("data alignment error for %s", symbol), nil)
	}

	candles := make([]models.MCandle, 0, n)
	skipped := 0
	for i := 0; i < n; i++ {
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil ||
			quote.Close[i] == nil || quote.Volume[i] == nil {
			skipped++
			continue
		}
		if *quote.Close[i] <= 0 || *quote.Volume[i] < 0 {
			skipped++
			continue
		}

		candles = append(candles, models.MCandle{
			Timestamp: result.Timestamp[i],
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    *quote.Volume[i],
		})
	}

	candles = sortAndDedup(candles)

	if skipped > 0 {
		s.Logger.Debug("Skipped %d invalid bars for %s", skipped, symbol)
	}
	if len(candles) > 0 {
		s.Logger.Debug("Fetched %s: %d candles [%d -> %d]", symbol, len(candles), candles[0].Timestamp, candles[len(candles)-1].Timestamp)
	}

	return candles, nil
}

// -----------------------------------------------------------------------------

// sortAndDedup orders candles ascending and keeps the last bar for any
// repeated timestamp.
func sortAndDedup(candles []models.MCandle) []models.MCandle {
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })

	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Timestamp == c.Timestamp {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
