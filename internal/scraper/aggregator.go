package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/loadthegraphics/ltgbot/internal/telemetry"
)

const tracerName = "github.com/loadthegraphics/ltgbot/internal/scraper"

// AggregatorConfig configures fan-out searches.
type AggregatorConfig struct {
	// Concurrency caps the number of sites searched at once.
	// Default: 4
	Concurrency int

	// SiteTimeout bounds the search of a single site.
	// Default: 90s
	SiteTimeout time.Duration

	// Retries is how many extra attempts a failed site search gets, negative disables retries.
	// Default: 1
	Retries int

	// RetryDelay is the pause before a retry.
	// Default: 3s
	RetryDelay time.Duration
}

func (c *AggregatorConfig) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.SiteTimeout == 0 {
		c.SiteTimeout = 90 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	} else if c.Retries == 0 {
		c.Retries = 1
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 3 * time.Second
	}
}

// Aggregator searches every source site and dispatches follow-up steps to the provider of
// the site a result came from.
type Aggregator struct {
	sources  SourceLister
	registry *Registry
	cfg      AggregatorConfig
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
}

var _ Searcher = (*Aggregator)(nil)

// NewAggregator creates an aggregator over sources and registry.
func NewAggregator(sources SourceLister, registry *Registry, cfg AggregatorConfig) *Aggregator {
	cfg.applyDefaults()
	return &Aggregator{
		sources:  sources,
		registry: registry,
		cfg:      cfg,
		tracer:   otel.Tracer(tracerName),
		metrics:  telemetry.GetMetrics(),
	}
}

// Search queries all source sites concurrently and concatenates their results in source order.
// A failing site is logged and contributes nothing.
func (a *Aggregator) Search(ctx context.Context, query string) ([]models.MovieResult, error) {
	ctx, span := a.tracer.Start(ctx, "scraper.Search", trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	started := time.Now()
	defer func() {
		a.metrics.SearchDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	}()

	sites, err := a.sources.Sources(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "source list failed")
		log.Warn().Err(err).Msg("Failed to list sources")
		return nil, fmt.Errorf("%w: %w", ErrNoSources, err)
	}
	if len(sites) == 0 {
		span.SetStatus(codes.Error, "no sources")
		return nil, ErrNoSources
	}

	perSite := make([][]models.MovieResult, len(sites))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)

	for i, site := range sites {
		g.Go(func() error {
			results, err := a.searchSite(ctx, site, query)
			if err != nil {
				if errors.Is(err, ErrNotImplemented) {
					log.Debug().Str("site", site).Msg("No scraper for site")
				} else {
					a.metrics.SearchErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("site", site)))
					log.Warn().Err(err).Str("site", site).Str("query", query).Msg("Site search failed")
				}
				return nil
			}
			perSite[i] = results
			return nil
		})
	}
	_ = g.Wait()

	var all []models.MovieResult
	for _, results := range perSite {
		all = append(all, results...)
	}

	span.SetAttributes(
		attribute.Int("sites", len(sites)),
		attribute.Int("results", len(all)),
	)

	log.Info().
		Str("query", query).
		Int("sites", len(sites)).
		Int("results", len(all)).
		Dur("duration", time.Since(started)).
		Msg("Search finished")

	return all, nil
}

func (a *Aggregator) searchSite(ctx context.Context, site, query string) ([]models.MovieResult, error) {
	provider, err := a.registry.For(site)
	if err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "scraper.SearchSite", trace.WithAttributes(
		attribute.String("site", site),
		attribute.String("provider", provider.Name()),
	))
	defer span.End()

	a.metrics.SearchesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider.Name())))

	op := func() ([]models.MovieResult, error) {
		siteCtx, cancel := context.WithTimeout(ctx, a.cfg.SiteTimeout)
		defer cancel()

		results, err := provider.Search(siteCtx, site, query)
		if err != nil {
			if errors.Is(err, ErrNotImplemented) || errors.Is(err, ErrBlocked) || errors.Is(err, ErrInvalidSiteURL) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return results, nil
	}

	results, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(a.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(a.cfg.Retries+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Debug().Err(err).Str("site", site).Dur("retry_in", d).Msg("Retrying site search")
		}),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "site search failed")
		return nil, err
	}

	for i := range results {
		if results[i].SourceSite == "" {
			results[i].SourceSite = site
		}
	}

	a.metrics.SearchResultsTotal.Add(ctx, int64(len(results)))
	span.SetAttributes(attribute.Int("results", len(results)))

	return results, nil
}

// Options resolves the download options of result through its site's provider.
func (a *Aggregator) Options(ctx context.Context, result models.MovieResult) ([]models.DownloadOption, error) {
	provider, err := a.registry.For(result.SourceSite)
	if err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "scraper.Options", trace.WithAttributes(
		attribute.String("site", result.SourceSite),
		attribute.String("provider", provider.Name()),
	))
	defer span.End()

	options, err := provider.Options(ctx, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "options failed")
		return nil, fmt.Errorf("failed to get download options: %w", err)
	}

	span.SetAttributes(attribute.Int("options", len(options)))
	return options, nil
}

// FinalLink resolves the direct download link for option through its site's provider.
func (a *Aggregator) FinalLink(ctx context.Context, result models.MovieResult, option models.DownloadOption) (string, error) {
	provider, err := a.registry.For(result.SourceSite)
	if err != nil {
		return "", err
	}

	ctx, span := a.tracer.Start(ctx, "scraper.FinalLink", trace.WithAttributes(
		attribute.String("site", result.SourceSite),
		attribute.String("provider", provider.Name()),
	))
	defer span.End()

	link, err := provider.FinalLink(ctx, result, option)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "final link failed")
		return "", fmt.Errorf("failed to get final link: %w", err)
	}

	if link == "" {
		return "", ErrNoLink
	}

	return link, nil
}
