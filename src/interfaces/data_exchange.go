package interfaces

// -----------------------------------------------------------------------------
// IDataExchanger shares data with external systems (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------
	// Broadcast pushes a payload to every connected listener.
	Broadcast(payload interface{})

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
