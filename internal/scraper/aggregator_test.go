package scraper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loadthegraphics/ltgbot/internal/models"
)

type fakeProvider struct {
	name    string
	delay   time.Duration
	failN   int32
	calls   atomic.Int32
	err     error
	results []models.MovieResult
	options []models.DownloadOption
	link    string

	mu       sync.Mutex
	lastSite string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, siteURL, query string) ([]models.MovieResult, error) {
	n := f.calls.Add(1)

	f.mu.Lock()
	f.lastSite = siteURL
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= f.failN {
		return nil, errors.New("temporary failure")
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.MovieResult(nil), f.results...), nil
}

func (f *fakeProvider) Options(ctx context.Context, result models.MovieResult) ([]models.DownloadOption, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.options, nil
}

func (f *fakeProvider) FinalLink(ctx context.Context, result models.MovieResult, option models.DownloadOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.link, nil
}

func newTestAggregator(t *testing.T, sites []string, providers map[string]Provider) *Aggregator {
	t.Helper()
	r := NewRegistry()
	for site, p := range providers {
		require.NoError(t, r.Register(site, p))
	}
	return NewAggregator(StaticSources(sites), r, AggregatorConfig{
		Concurrency: 2,
		SiteTimeout: time.Second,
		RetryDelay:  time.Millisecond,
	})
}

func TestAggregator_SearchKeepsSourceOrder(t *testing.T) {
	alpha := &fakeProvider{name: "alpha", delay: 30 * time.Millisecond, results: []models.MovieResult{
		{Title: "Inception (Alpha)", DetailURL: "https://alpha.example/1"},
	}}
	beta := &fakeProvider{name: "beta", results: []models.MovieResult{
		{Title: "Inception (Beta)", DetailURL: "https://beta.example/1", SourceSite: "https://beta.example"},
		{Title: "Inception 2 (Beta)", DetailURL: "https://beta.example/2"},
	}}

	a := newTestAggregator(t,
		[]string{"https://alpha.example", "https://beta.example", "https://gamma.example"},
		map[string]Provider{"https://alpha.example": alpha, "https://beta.example": beta},
	)

	results, err := a.Search(context.Background(), "Inception")
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "Inception (Alpha)", results[0].Title)
	require.Equal(t, "https://alpha.example", results[0].SourceSite)
	require.Equal(t, "Inception (Beta)", results[1].Title)
	require.Equal(t, "https://beta.example", results[2].SourceSite)
}

func TestAggregator_FailingSiteSkipped(t *testing.T) {
	broken := &fakeProvider{name: "broken", err: errors.New("site down")}
	ok := &fakeProvider{name: "ok", results: []models.MovieResult{{Title: "Heat", DetailURL: "https://ok.example/heat"}}}

	a := newTestAggregator(t,
		[]string{"https://broken.example", "https://ok.example"},
		map[string]Provider{"https://broken.example": broken, "https://ok.example": ok},
	)

	results, err := a.Search(context.Background(), "Heat")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Heat", results[0].Title)
	require.Equal(t, int32(2), broken.calls.Load(), "one retry after the first failure")
}

func TestAggregator_RetrySucceeds(t *testing.T) {
	flaky := &fakeProvider{name: "flaky", failN: 1, results: []models.MovieResult{{Title: "Ronin", DetailURL: "https://flaky.example/r"}}}

	a := newTestAggregator(t, []string{"https://flaky.example"}, map[string]Provider{"https://flaky.example": flaky})

	results, err := a.Search(context.Background(), "Ronin")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int32(2), flaky.calls.Load())
}

func TestAggregator_PermanentErrorsNotRetried(t *testing.T) {
	blocked := &fakeProvider{name: "blocked", err: ErrBlocked}

	a := newTestAggregator(t, []string{"https://blocked.example"}, map[string]Provider{"https://blocked.example": blocked})

	results, err := a.Search(context.Background(), "Alien")
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, int32(1), blocked.calls.Load())
}

func TestAggregator_NoSources(t *testing.T) {
	a := newTestAggregator(t, nil, nil)

	_, err := a.Search(context.Background(), "Inception")
	require.ErrorIs(t, err, ErrNoSources)
}

func TestAggregator_SourceListError(t *testing.T) {
	a := NewAggregator(&countingLister{err: errors.New("listing down")}, NewRegistry(), AggregatorConfig{})

	_, err := a.Search(context.Background(), "Inception")
	require.ErrorIs(t, err, ErrNoSources)
	require.ErrorContains(t, err, "listing down")
}

func TestAggregator_OptionsAndFinalLinkDispatchBySite(t *testing.T) {
	alpha := &fakeProvider{
		name:    "alpha",
		options: []models.DownloadOption{{Quality: "720p", Language: "English", TriggerURL: "https://alpha.example/dl"}},
		link:    "https://cdn.alpha.example/inception.mkv",
	}

	a := newTestAggregator(t, []string{"https://alpha.example"}, map[string]Provider{"https://alpha.example": alpha})

	result := models.MovieResult{Title: "Inception", DetailURL: "https://alpha.example/1", SourceSite: "https://alpha.example"}

	options, err := a.Options(context.Background(), result)
	require.NoError(t, err)
	require.Equal(t, alpha.options, options)

	link, err := a.FinalLink(context.Background(), result, options[0])
	require.NoError(t, err)
	require.Equal(t, "https://cdn.alpha.example/inception.mkv", link)

	_, err = a.Options(context.Background(), models.MovieResult{SourceSite: "https://other.example"})
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestAggregator_EmptyFinalLink(t *testing.T) {
	p := &fakeProvider{name: "empty"}
	a := newTestAggregator(t, []string{"https://empty.example"}, map[string]Provider{"https://empty.example": p})

	_, err := a.FinalLink(context.Background(), models.MovieResult{SourceSite: "https://empty.example"}, models.DownloadOption{})
	require.ErrorIs(t, err, ErrNoLink)
}
