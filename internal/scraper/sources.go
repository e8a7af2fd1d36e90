package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

const maxSourceListBytes = 5 << 20

// StaticSources is a fixed list of source sites.
type StaticSources []string

// Sources returns a copy of the list.
func (s StaticSources) Sources(ctx context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// LinkListSource discovers source sites from the external links on a listing page.
type LinkListSource struct {
	URL    string
	Client *http.Client
}

// Sources fetches the listing page and returns the origin of every external http(s) link,
// deduplicated by host in page order.
func (l *LinkListSource) Sources(ctx context.Context) ([]string, error) {
	base, err := validateSiteURL(l.URL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch source list: unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxSourceListBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse source list: %w", err)
	}

	sites := extractSites(doc, base)

	log.Debug().
		Str("url", l.URL).
		Int("sites", len(sites)).
		Msg("Fetched source list")

	return sites, nil
}

// extractSites walks doc for anchors pointing off the listing host.
func extractSites(doc *html.Node, base *url.URL) []string {
	listHost, _ := siteKey(base.String())

	seen := make(map[string]bool)
	var sites []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); href != "" {
				if site, key, ok := resolveSite(base, href); ok && key != listHost && !seen[key] {
					seen[key] = true
					sites = append(sites, site)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return sites
}

func resolveSite(base *url.URL, href string) (site, key string, ok bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", "", false
	}

	u := base.ResolveReference(ref)
	key, err = siteKey(u.String())
	if err != nil {
		return "", "", false
	}

	return u.Scheme + "://" + u.Host, key, true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// CachedSources caches another lister's result. When a refresh fails the last good list is served.
type CachedSources struct {
	next  SourceLister
	cache *cache.Cache

	mu       sync.Mutex
	lastGood []string
}

const sourcesCacheKey = "sources"

// NewCachedSources wraps next with a TTL cache.
func NewCachedSources(next SourceLister, ttl time.Duration) *CachedSources {
	return &CachedSources{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Sources returns the cached list, refreshing it from the wrapped lister when expired.
func (c *CachedSources) Sources(ctx context.Context) ([]string, error) {
	if v, ok := c.cache.Get(sourcesCacheKey); ok {
		return append([]string(nil), v.([]string)...), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another caller may have refreshed while we waited
	if v, ok := c.cache.Get(sourcesCacheKey); ok {
		return append([]string(nil), v.([]string)...), nil
	}

	sites, err := c.next.Sources(ctx)
	if err != nil {
		if c.lastGood != nil {
			log.Warn().Err(err).Int("sites", len(c.lastGood)).Msg("Source list refresh failed, serving last good list")
			return append([]string(nil), c.lastGood...), nil
		}
		return nil, err
	}

	if len(sites) > 0 {
		c.cache.Set(sourcesCacheKey, sites, cache.DefaultExpiration)
		c.lastGood = sites
	}

	return append([]string(nil), sites...), nil
}

// MultiSources concatenates several listers, dropping duplicate hosts.
// A failing lister is logged and skipped.
type MultiSources []SourceLister

func (m MultiSources) Sources(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var sites []string
	var lastErr error

	for _, lister := range m {
		list, err := lister.Sources(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Source lister failed")
			lastErr = err
			continue
		}
		for _, site := range list {
			key, err := siteKey(site)
			if err != nil || seen[key] {
				continue
			}
			seen[key] = true
			sites = append(sites, site)
		}
	}

	if len(sites) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return sites, nil
}
