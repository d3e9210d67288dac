// Package news is the client of the external news and sentiment service.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"market-analytics/src/helpers"
	"market-analytics/src/interfaces"
	"market-analytics/src/logger"
	"market-analytics/src/models"
)

const defaultLimit = 50

type NewsClient struct {
	BaseURL string
	APIKey  string
	Limit   int
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

type newsResponse struct {
	Items []models.MNewsItem `json:"items"`
}

type textRequest struct {
	Text string `json:"text"`
}

// -----------------------------------------------------------------------------

func NewNewsClient(cfg models.MNewsConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *NewsClient {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return &NewsClient{
		BaseURL: strings.TrimRight(cfg.URL, "/"),
		APIKey:  cfg.APIKey,
		Limit:   limit,
		Network: netMgr,
		Logger:  log.Named("News"),
	}
}

// -----------------------------------------------------------------------------

// FetchNews returns headlines newest first. Empty symbols means market-wide.
func (c *NewsClient) FetchNews(ctx context.Context, symbols []string) ([]models.MNewsItem, error) {
	params := map[string]string{"limit": strconv.Itoa(c.Limit)}
	if len(symbols) > 0 {
		params["symbols"] = strings.Join(symbols, ",")
	}
	if c.APIKey != "" {
		params["apikey"] = c.APIKey
	}

	body, err := c.Network.Get(ctx, c.BaseURL+"/news", params)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}

	var resp newsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewDataSourceError("invalid news payload", err)
	}

	items := make([]models.MNewsItem, 0, len(resp.Items))
	seen := make(map[string]bool, len(resp.Items))
	for _, it := range resp.Items {
		if it.Headline == "" {
			continue
		}
		key := it.ID
		if key == "" {
			key = it.URL
		}
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, it)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > c.Limit {
		items = items[:c.Limit]
	}

	c.Logger.Debug("Fetched %d news items", len(items))
	return items, nil
}

// -----------------------------------------------------------------------------

func (c *NewsClient) AnalyzeSentiment(ctx context.Context, text string) (*models.MSentiment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, helpers.NewValidationError("empty text")
	}

	var out models.MSentiment
	if err := c.post(ctx, "/sentiment", text, &out); err != nil {
		return nil, fmt.Errorf("analyze sentiment: %w", err)
	}
	return &out, nil
}

// -----------------------------------------------------------------------------

func (c *NewsClient) PredictImpact(ctx context.Context, text string) (*models.MNewsImpact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, helpers.NewValidationError("empty text")
	}

	var out models.MNewsImpact
	if err := c.post(ctx, "/impact", text, &out); err != nil {
		return nil, fmt.Errorf("predict impact: %w", err)
	}
	return &out, nil
}

// -----------------------------------------------------------------------------

func (c *NewsClient) post(ctx context.Context, path, text string, dst interface{}) error {
	target := c.BaseURL + path
	if c.APIKey != "" {
		target += "?apikey=" + url.QueryEscape(c.APIKey)
	}

	body, err := c.Network.PostJSON(ctx, target, textRequest{Text: text})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return helpers.NewDataSourceError("invalid response from "+path, err)
	}
	return nil
}
