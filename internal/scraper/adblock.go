package scraper

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/loadthegraphics/ltgbot/internal/telemetry"
)

// DefaultAdPatterns are URL fragments of known ad and tracker hosts.
var DefaultAdPatterns = []string{
	"doubleclick.net",
	"googleadservices.com",
	"googlesyndication.com",
	"adservice.google.com",
	".cloudfront.net/ads",
	"adform.net",
	"adsrvr.org",
	"popads.net",
	"yllix.com",
	"propellerads.com",
	"adsterra.com",
	"onclickads.net",
	"exoclick.com",
	"ero-advertising.com",
	"juicyads.com",
	"plugrush.com",
	"bongacams.com",
	"chaturbate.com",
}

// Blocklist matches URLs against case-insensitive substring patterns.
type Blocklist struct {
	patterns []string
}

// NewBlocklist creates a blocklist from patterns, ignoring blank entries.
func NewBlocklist(patterns ...string) *Blocklist {
	b := &Blocklist{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			b.patterns = append(b.patterns, p)
		}
	}
	return b
}

// DefaultBlocklist returns a blocklist of DefaultAdPatterns plus extra.
func DefaultBlocklist(extra ...string) *Blocklist {
	return NewBlocklist(append(append([]string{}, DefaultAdPatterns...), extra...)...)
}

// Blocked reports whether rawURL matches any pattern.
func (b *Blocklist) Blocked(rawURL string) bool {
	if b == nil {
		return false
	}
	u := strings.ToLower(rawURL)
	for _, p := range b.patterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the configured patterns.
func (b *Blocklist) Patterns() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.patterns...)
}

// blockingTransport refuses requests to blocklisted URLs, including redirect hops.
type blockingTransport struct {
	next      http.RoundTripper
	blocklist *Blocklist
	metrics   *telemetry.Metrics
}

func (t *blockingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.blocklist.Blocked(req.URL.String()) {
		t.metrics.RequestsBlocked.Add(req.Context(), 1)
		return nil, fmt.Errorf("%w: %s", ErrBlocked, req.URL.Host)
	}
	return t.next.RoundTrip(req)
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.next.RoundTrip(req)
}
