package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/loadthegraphics/ltgbot/internal/models"
)

// Registry maps site hosts to providers. Sites without a provider resolve to Unimplemented.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		fallback:  Unimplemented{},
	}
}

// Register binds provider to the host of siteURL.
func (r *Registry) Register(siteURL string, provider Provider) error {
	key, err := siteKey(siteURL)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[key] = provider
	return nil
}

// SetFallback replaces the provider used for unregistered sites.
func (r *Registry) SetFallback(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// For returns the provider for siteURL.
func (r *Registry) For(siteURL string) (Provider, error) {
	key, err := siteKey(siteURL)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	return r.fallback, nil
}

// Len returns the number of registered sites.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Unimplemented is the provider for sites nobody has written a scraper for yet.
type Unimplemented struct{}

func (Unimplemented) Name() string { return "unimplemented" }

func (Unimplemented) Search(ctx context.Context, siteURL, query string) ([]models.MovieResult, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, siteURL)
}

func (Unimplemented) Options(ctx context.Context, result models.MovieResult) ([]models.DownloadOption, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, result.SourceSite)
}

func (Unimplemented) FinalLink(ctx context.Context, result models.MovieResult, option models.DownloadOption) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNotImplemented, result.SourceSite)
}
