package helpers

import (
	"net/url"
	"strings"
	"sync"

	"market-analytics/src/logger"
)

// -----------------------------------------------------------------------------

// ProxyRotator cycles through the configured outbound proxies
type ProxyRotator struct {
	proxies   []string
	userAgent string
	index     int
	mu        sync.Mutex
	logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewProxyRotator(proxies []string, userAgent string, log *logger.Logger) *ProxyRotator {
	var valid []string
	for _, p := range proxies {
		if ValidateProxy(p) {
			valid = append(valid, FormatProxy(p))
		}
	}
	if userAgent == "" {
		userAgent = "market-analytics/1.0"
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &ProxyRotator{proxies: valid, userAgent: userAgent, logger: log}
}

// -----------------------------------------------------------------------------

// CurrentProxy returns the selected proxy URL, or nil when none are configured
func (pr *ProxyRotator) CurrentProxy() *url.URL {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if len(pr.proxies) == 0 {
		return nil
	}
	u, err := url.Parse(pr.proxies[pr.index])
	if err != nil {
		return nil
	}
	return u
}

// -----------------------------------------------------------------------------

func (pr *ProxyRotator) Rotate() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if len(pr.proxies) <= 1 {
		return
	}
	pr.index = (pr.index + 1) % len(pr.proxies)
	pr.logger.Info("Rotating proxy to: %s", pr.proxies[pr.index])
}

// -----------------------------------------------------------------------------

func (pr *ProxyRotator) HasProxies() bool {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return len(pr.proxies) > 0
}

// -----------------------------------------------------------------------------

func (pr *ProxyRotator) UserAgent() string {
	return pr.userAgent
}

// -----------------------------------------------------------------------------

// ValidateProxy checks if a proxy string is roughly valid.
func ValidateProxy(proxyStr string) bool {
	if proxyStr == "" {
		return false
	}
	u, err := url.Parse(FormatProxy(proxyStr))
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "socks5")
}

// -----------------------------------------------------------------------------

// FormatProxy ensures the proxy has a scheme.
func FormatProxy(proxyStr string) string {
	if !strings.Contains(proxyStr, "://") {
		return "http://" + proxyStr
	}
	return proxyStr
}
