package interfaces

import "market-analytics/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSeries replaces the stored candles of a symbol/timeframe.
	SaveSeries(series models.MHistoricalSeries) error

	// -----------------------------------------------------------------------------

	// LoadSeries returns stored candles, ascending. Missing data is an empty slice.
	LoadSeries(symbol, timeframe string) ([]models.MCandle, error)

	// -----------------------------------------------------------------------------

	SaveQuote(quote models.MRealTimeQuote) error

	// -----------------------------------------------------------------------------

	SaveFundamentals(snapshot models.MFundamentalSnapshot) error

	// -----------------------------------------------------------------------------

	// SaveSubscriptions persists the active symbol set.
	SaveSubscriptions(symbols []string) error

	// -----------------------------------------------------------------------------

	LoadSubscriptions() ([]string, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
