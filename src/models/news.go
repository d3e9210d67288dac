package models

import "time"

// MNewsItem is one article as cached by the market data service.
type MNewsItem struct {
	ID          string       `json:"id"`
	Headline    string       `json:"headline"`
	Summary     string       `json:"summary"`
	Source      string       `json:"source"`
	URL         string       `json:"url"`
	Symbols     []string     `json:"symbols"`
	PublishedAt time.Time    `json:"published_at"`
	Sentiment   *MSentiment  `json:"sentiment,omitempty"`
	Impact      *MNewsImpact `json:"impact,omitempty"`
}

// MSentiment is returned by the external sentiment service.
type MSentiment struct {
	Sentiment  string             `json:"sentiment"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Aspects    []MAspectSentiment `json:"aspects"`
}

type MAspectSentiment struct {
	Aspect    string  `json:"aspect"`
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

// MNewsImpact is returned by the external impact predictor.
type MNewsImpact struct {
	ImpactScore     float64  `json:"impact_score"`
	Probability     float64  `json:"probability"`
	Timeframe       string   `json:"timeframe"`
	AffectedSectors []string `json:"affected_sectors"`
	Confidence      float64  `json:"confidence"`
}
