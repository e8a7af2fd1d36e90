// Package scraper discovers movie source sites and resolves search results, download options
// and final links through pluggable per-site providers.
package scraper

import (
	"context"

	"github.com/loadthegraphics/ltgbot/internal/models"
)

// Provider scrapes one kind of movie site.
type Provider interface {
	// Name identifies the provider in logs and spans.
	Name() string

	// Search returns the candidate results for query on siteURL.
	Search(ctx context.Context, siteURL, query string) ([]models.MovieResult, error)

	// Options returns the download options listed on a result's detail page.
	Options(ctx context.Context, result models.MovieResult) ([]models.DownloadOption, error)

	// FinalLink follows an option's trigger URL to the direct download link.
	FinalLink(ctx context.Context, result models.MovieResult, option models.DownloadOption) (string, error)
}

// SourceLister returns the movie source sites to search.
type SourceLister interface {
	Sources(ctx context.Context) ([]string, error)
}

// Searcher is the aggregated scraping capability used by the bot.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.MovieResult, error)
	Options(ctx context.Context, result models.MovieResult) ([]models.DownloadOption, error)
	FinalLink(ctx context.Context, result models.MovieResult, option models.DownloadOption) (string, error)
}
