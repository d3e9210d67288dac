// Package network is the shared REST transport: rate limited, proxy aware and
// context bound. Retries are left to the caller.
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"market-analytics/src/helpers"
	"market-analytics/src/interfaces"
	"market-analytics/src/logger"
	"market-analytics/src/models"
)

// maxBodyBytes caps how much of a response is read into memory.
const maxBodyBytes = 16 << 20

type AsyncNetworkManager struct {
	Config       models.MNetworkConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger

	limiter *rate.Limiter
	client  *http.Client
	mu      sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg models.MNetworkConfig, log *logger.Logger) *AsyncNetworkManager {
	if log == nil {
		log = logger.NewSilentLogger()
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyRotator(cfg.Proxies, cfg.UserAgent, log),
		Logger:       log.Named("Network"),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		nm.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := nm.ProxyManager.CurrentProxy(); proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.Rotate()
	client := nm.createClient()

	nm.mu.Lock()
	nm.client = client
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get performs a GET request to urlStr with params added to its query.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewValidationError(fmt.Sprintf("invalid url %q: %v", urlStr, err))
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, helpers.NewNetworkError("build request", err)
	}
	return nm.do(ctx, req)
}

// -----------------------------------------------------------------------------

// PostJSON sends body encoded as JSON.
func (nm *AsyncNetworkManager) PostJSON(ctx context.Context, urlStr string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, helpers.NewValidationError(fmt.Sprintf("encode body: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(payload))
	if err != nil {
		return nil, helpers.NewNetworkError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return nm.do(ctx, req)
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if nm.limiter != nil {
		if err := nm.limiter.Wait(ctx); err != nil {
			return nil, helpers.NewNetworkError("rate limiter", err)
		}
	}

	req.Header.Set("User-Agent", nm.ProxyManager.UserAgent())
	req.Header.Set("Accept", "application/json")

	nm.mu.RLock()
	client := nm.client
	nm.mu.RUnlock()

	resp, err := client.Do(req)
	if err != nil {
		return nil, helpers.NewNetworkError(fmt.Sprintf("%s %s", req.Method, req.URL.Host), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		nm.Logger.Warning("Request to %s blocked (%d). Rotating proxy.", req.URL.Host, resp.StatusCode)
		nm.rotateProxy()
		return nil, helpers.NewNetworkError(fmt.Sprintf("blocked (status %d)", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, helpers.NewNetworkError("read body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		nm.Logger.Debug("Bad status %d from %s", resp.StatusCode, req.URL.Host)
		return nil, helpers.NewNetworkError(fmt.Sprintf("bad status: %d", resp.StatusCode), nil)
	}

	return body, nil
}
