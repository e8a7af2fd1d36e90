package redis

import (
	"testing"
	"time"

	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	c, err := newCodec()
	require.NoError(t, err)
	defer c.close()

	selected := 1
	session := &models.Session{
		ID:        "7YbNbsnBwGQ5qNbQgyCgcz",
		ChatID:    -1001234,
		Query:     "Inception",
		State:     models.SessionStateOptionsAttached,
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 123456000, time.UTC),
		Results: []models.MovieResult{
			{Title: "Inception (2010)", DetailURL: "https://a.example/inception", SourceSite: "https://a.example/"},
			{Title: "Inception 2", PosterURL: "https://b.example/p.jpg", DetailURL: "https://b.example/i2", SourceSite: "https://b.example/"},
		},
		SelectedIndex: &selected,
		DownloadOptions: []models.DownloadOption{
			{Quality: "720p", TriggerURL: "https://b.example/dl/720"},
		},
	}

	data, err := c.encode(session)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := c.decode(data)
	require.NoError(t, err)
	require.Equal(t, session.ID, got.ID)
	require.Equal(t, session.ChatID, got.ChatID)
	require.Equal(t, session.State, got.State)
	require.True(t, session.CreatedAt.Equal(got.CreatedAt))
	require.Equal(t, session.Results, got.Results)
	require.Equal(t, session.DownloadOptions, got.DownloadOptions)
	require.NotNil(t, got.SelectedIndex)
	require.Equal(t, 1, *got.SelectedIndex)
}

func TestCodec_DecodeGarbage(t *testing.T) {
	c, err := newCodec()
	require.NoError(t, err)
	defer c.close()

	_, err = c.decode([]byte("not zstd"))
	require.Error(t, err)
}

func TestScore_MicrosecondPrecision(t *testing.T) {
	a := time.Date(2024, 6, 1, 12, 0, 0, 1000, time.UTC)
	b := a.Add(time.Microsecond)

	require.Less(t, score(a), score(b))
	require.Equal(t, score(a), score(a.Add(999*time.Nanosecond)))
}
