package interfaces

import (
	"context"

	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------
// IHistoricalSource fetches aggregated candles from a REST endpoint.
// -----------------------------------------------------------------------------

type IHistoricalSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchAggregates returns candles for symbol at interval (e.g. "1d") over
	// rng (e.g. "1y"), ascending by timestamp with no duplicates.
	FetchAggregates(ctx context.Context, symbol, interval, rng string) ([]models.MCandle, error)
}

// -----------------------------------------------------------------------------
// IFundamentalSource fetches company and valuation fields.
// -----------------------------------------------------------------------------

type IFundamentalSource interface {
	FetchFundamentals(ctx context.Context, symbol string) (*models.MFundamentalSnapshot, error)
}
