package scraper

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"

	"github.com/loadthegraphics/ltgbot/internal/telemetry"
)

// DefaultUserAgent is sent on scraper requests that don't set their own.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ClientConfig configures the scraper HTTP client.
type ClientConfig struct {
	// CacheDir enables a disk cache shared across restarts, empty uses memory.
	CacheDir string

	// Timeout bounds each request including redirects.
	// Default: 30s
	Timeout time.Duration

	// Blocklist rejects ad and tracker URLs, nil disables blocking.
	Blocklist *Blocklist

	// Default: DefaultUserAgent
	UserAgent string

	// Base is the transport under the cache.
	// Default: http.DefaultTransport
	Base http.RoundTripper
}

// NewHTTPClient creates an HTTP client that honours cache headers and refuses blocklisted URLs.
// Requests pass through the blocklist first, then the cache, then the network.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}

	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cfg.CacheDir != "" {
		cache = diskcache.New(cfg.CacheDir)
	}

	cached := httpcache.NewTransport(cache)
	cached.Transport = &userAgentTransport{next: cfg.Base, userAgent: cfg.UserAgent}

	var transport http.RoundTripper = cached
	if cfg.Blocklist != nil {
		transport = &blockingTransport{
			next:      cached,
			blocklist: cfg.Blocklist,
			metrics:   telemetry.GetMetrics(),
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
