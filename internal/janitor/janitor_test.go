package janitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/loadthegraphics/ltgbot/internal/store"
	"github.com/loadthegraphics/ltgbot/internal/store/memory"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	err   error
	swept chan struct{}
}

func (c *countingSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	select {
	case c.swept <- struct{}{}:
	default:
	}

	return 0, c.err
}

func (c *countingSweeper) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestSweepOnce_RemovesExpiredSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s, err := memory.NewSessionStore(store.Config{Now: clock})
	require.NoError(t, err)

	id, err := s.Create(ctx, 1, "Inception")
	require.NoError(t, err)
	require.NoError(t, s.AttachResults(ctx, id, []models.MovieResult{{Title: "Inception"}}))

	j := New(s, Config{Now: clock})

	removed, err := j.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, removed)

	now = now.Add(2*time.Hour + time.Minute)

	removed, err = j.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 0, s.Len())

	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSweepOnce_ReturnsStoreError(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("boom"), swept: make(chan struct{}, 1)}
	j := New(sweeper, Config{})

	_, err := j.SweepOnce(context.Background())
	require.Error(t, err)
}

func TestRun_SweepsImmediatelyAndOnTick(t *testing.T) {
	sweeper := &countingSweeper{swept: make(chan struct{}, 1)}
	j := New(sweeper, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	require.Eventually(t, func() bool { return sweeper.Calls() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRun_KeepsRunningAfterFailure(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("unavailable"), swept: make(chan struct{}, 1)}
	j := New(sweeper, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = j.Run(ctx) }()

	require.Eventually(t, func() bool { return sweeper.Calls() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestNew_Defaults(t *testing.T) {
	j := New(&countingSweeper{}, Config{})
	require.Equal(t, DefaultInterval, j.cfg.Interval)
	require.NotNil(t, j.cfg.Now)
}
