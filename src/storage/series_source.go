package storage

import (
	"context"

	"market-analytics/src/interfaces"
	"market-analytics/src/models"
)

// SeriesSource serves persisted candles as a historical source, for use as
// the last fallback behind the network sources.
type SeriesSource struct {
	DB interfaces.IDatabase
}

func NewSeriesSource(db interfaces.IDatabase) *SeriesSource {
	return &SeriesSource{DB: db}
}

func (s *SeriesSource) Name() string { return "storage" }

// -----------------------------------------------------------------------------

// FetchAggregates returns every stored candle of symbol/interval; rng is
// ignored.
func (s *SeriesSource) FetchAggregates(ctx context.Context, symbol, interval, rng string) ([]models.MCandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.DB.LoadSeries(symbol, interval)
}
