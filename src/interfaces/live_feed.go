package interfaces

import (
	"context"
	"sync"

	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------
// ILiveFeed is a streaming trade feed with subscribe/unsubscribe control.
// -----------------------------------------------------------------------------

type ILiveFeed interface {

	// Start runs the connection loop until ctx is cancelled. Ticks and state
	// transitions are pushed to out; wg is released once the loop has exited.
	Start(ctx context.Context, out chan<- models.MFeedEvent, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Subscribe registers a symbol; it is (re)sent on every successful connect.
	Subscribe(symbol string)

	// -----------------------------------------------------------------------------

	// Unsubscribe removes a symbol from the feed. Unknown symbols are ignored.
	Unsubscribe(symbol string)

	// -----------------------------------------------------------------------------

	// State returns one of the models.Conn* constants.
	State() string

	// -----------------------------------------------------------------------------

	// Attempts returns the number of consecutive failed connects.
	Attempts() int

	// -----------------------------------------------------------------------------

	// Reconnect re-arms the connection loop after it halted.
	Reconnect()

	// -----------------------------------------------------------------------------

	// Close releases the connection.
	Close() error
}
