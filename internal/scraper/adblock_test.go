package scraper

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlocklist_Blocked(t *testing.T) {
	b := DefaultBlocklist("tracker.example")

	tests := []struct {
		url     string
		blocked bool
	}{
		{"https://securepubads.g.DoubleClick.net/tag/js/gpt.js", true},
		{"https://d1234.cloudfront.net/ads/banner.png", true},
		{"https://d1234.cloudfront.net/posters/inception.jpg", false},
		{"https://cdn.tracker.example/pixel.gif", true},
		{"https://movies.example/search?q=inception", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			require.Equal(t, tt.blocked, b.Blocked(tt.url))
		})
	}
}

func TestBlocklist_NilAndBlank(t *testing.T) {
	var b *Blocklist
	require.False(t, b.Blocked("https://doubleclick.net"))
	require.Nil(t, b.Patterns())

	b = NewBlocklist("", "  ", "Ads.Example")
	require.Equal(t, []string{"ads.example"}, b.Patterns())
	require.True(t, b.Blocked("https://ADS.example/x"))
}

func TestNewHTTPClient_BlocksBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{Blocklist: NewBlocklist("/ads/")})

	_, err := client.Get(srv.URL + "/ads/banner.js")
	require.ErrorIs(t, err, ErrBlocked)
	require.Zero(t, hits.Load())

	resp, err := client.Get(srv.URL + "/page")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, int32(1), hits.Load())
}

func TestNewHTTPClient_BlocksRedirectHop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/go" {
			http.Redirect(w, r, "/popads.net/landing", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "landing")
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{Blocklist: DefaultBlocklist()})

	_, err := client.Get(srv.URL + "/go")
	require.ErrorIs(t, err, ErrBlocked)
}

func TestNewHTTPClient_CachesAndSetsUserAgent(t *testing.T) {
	var hits atomic.Int32
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		agent.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Cache-Control", "max-age=3600")
		_, _ = io.WriteString(w, "cached body")
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{UserAgent: "ltgbot-test"})

	for range 2 {
		resp, err := client.Get(srv.URL + "/list")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, "cached body", string(body))
	}

	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, "ltgbot-test", agent.Load())
}
