package interfaces

import (
	"context"

	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------
// INewsService is the external news and sentiment collaborator. Its
// analysis is a black box.
// -----------------------------------------------------------------------------

type INewsService interface {

	// FetchNews returns the latest market headlines, optionally filtered by symbols.
	FetchNews(ctx context.Context, symbols []string) ([]models.MNewsItem, error)

	// -----------------------------------------------------------------------------

	AnalyzeSentiment(ctx context.Context, text string) (*models.MSentiment, error)

	// -----------------------------------------------------------------------------

	PredictImpact(ctx context.Context, text string) (*models.MNewsImpact, error)
}
