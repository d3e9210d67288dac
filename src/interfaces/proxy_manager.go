package interfaces

import "net/url"

// -----------------------------------------------------------------------------
// IProxyManager defines the contract for managing and rotating proxies.
// -----------------------------------------------------------------------------

type IProxyManager interface {

	// CurrentProxy returns the selected proxy, nil for a direct connection.
	CurrentProxy() *url.URL

	// -----------------------------------------------------------------------------

	// Rotate switches to the next available proxy.
	Rotate()

	// -----------------------------------------------------------------------------

	HasProxies() bool

	// -----------------------------------------------------------------------------

	UserAgent() string
}
