//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/loadthegraphics/ltgbot/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return connString, cleanup
}

func newIntegrationStore(t *testing.T, ctx context.Context, connString string, clock *testClock, maxSessions int) *SessionStore {
	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE search_sessions`)
	require.NoError(t, err)

	s, err := NewSessionStore(pool, store.Config{
		Retention:   2 * time.Hour,
		MaxSessions: maxSessions,
		Now:         clock.Now,
	})
	require.NoError(t, err)

	return s
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	connString, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := newIntegrationStore(t, ctx, connString, clock, 0)

	require.NoError(t, s.Ping(ctx))

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, RunMigrations(ctx, s.pool))
	})

	t.Run("search to final link", func(t *testing.T) {
		id, err := s.Create(ctx, 42, "Inception")
		require.NoError(t, err)

		session, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, int64(42), session.ChatID)
		require.Equal(t, "Inception", session.Query)
		require.Equal(t, models.SessionStateCreated, session.State)
		require.Empty(t, session.Results)

		results := []models.MovieResult{
			{Title: "Inception (2010)", DetailURL: "https://a.example/inception", SourceSite: "https://a.example/"},
			{Title: "Inception: The Cobol Job", DetailURL: "https://b.example/cobol", SourceSite: "https://b.example/"},
		}
		require.NoError(t, s.AttachResults(ctx, id, results))

		selected, err := s.SelectResult(ctx, id, 1)
		require.NoError(t, err)
		require.Equal(t, results[1], selected)

		options := []models.DownloadOption{
			{Quality: "1080p", Language: "English", TriggerURL: "https://b.example/dl/1080"},
		}
		require.NoError(t, s.AttachDownloadOptions(ctx, id, options))

		session, err = s.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, models.SessionStateOptionsAttached, session.State)
		require.Equal(t, results, session.Results)
		require.NotNil(t, session.SelectedIndex)
		require.Equal(t, 1, *session.SelectedIndex)
		require.Equal(t, options, session.DownloadOptions)

		require.NoError(t, s.Delete(ctx, id))
		_, err = s.Get(ctx, id)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
		require.ErrorIs(t, s.Delete(ctx, id), store.ErrSessionNotFound)
	})

	t.Run("invalid transitions", func(t *testing.T) {
		id, err := s.Create(ctx, 7, "Alien")
		require.NoError(t, err)

		_, err = s.SelectResult(ctx, id, 0)
		require.ErrorIs(t, err, store.ErrInvalidState)

		require.NoError(t, s.AttachResults(ctx, id, []models.MovieResult{{Title: "Alien"}}))

		_, err = s.SelectResult(ctx, id, 5)
		require.ErrorIs(t, err, store.ErrIndexOutOfRange)

		err = s.AttachDownloadOptions(ctx, id, nil)
		require.ErrorIs(t, err, store.ErrInvalidState)

		_, err = s.SelectResult(ctx, "missing", 0)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("expiry and sweep", func(t *testing.T) {
		id, err := s.Create(ctx, 9, "Heat")
		require.NoError(t, err)

		clock.Advance(2*time.Hour - time.Second)
		_, err = s.Get(ctx, id)
		require.NoError(t, err)

		clock.Advance(time.Second)
		_, err = s.Get(ctx, id)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
		require.ErrorIs(t, s.AttachResults(ctx, id, nil), store.ErrSessionNotFound)

		fresh, err := s.Create(ctx, 9, "Ronin")
		require.NoError(t, err)

		removed, err := s.Sweep(ctx, clock.Now())
		require.NoError(t, err)
		require.GreaterOrEqual(t, removed, 1)

		_, err = s.Get(ctx, fresh)
		require.NoError(t, err)

		removed, err = s.Sweep(ctx, clock.Now())
		require.NoError(t, err)
		require.Equal(t, 0, removed)
	})

	t.Run("delete by chat", func(t *testing.T) {
		for range 3 {
			_, err := s.Create(ctx, 100, "Dune")
			require.NoError(t, err)
		}
		other, err := s.Create(ctx, 101, "Dune")
		require.NoError(t, err)

		n, err := s.DeleteByChat(ctx, 100)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		_, err = s.Get(ctx, other)
		require.NoError(t, err)
	})

	t.Run("delete ignores expired sessions", func(t *testing.T) {
		stale, err := s.Create(ctx, 200, "Solaris")
		require.NoError(t, err)
		_, err = s.Create(ctx, 200, "Stalker")
		require.NoError(t, err)

		clock.Advance(2 * time.Hour)
		_, err = s.Create(ctx, 200, "Mirror")
		require.NoError(t, err)

		require.ErrorIs(t, s.Delete(ctx, stale), store.ErrSessionNotFound)

		n, err := s.DeleteByChat(ctx, 200)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
}

func TestIntegration_SessionCapacity(t *testing.T) {
	ctx := context.Background()
	connString, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := newIntegrationStore(t, ctx, connString, clock, 2)

	_, err := s.Create(ctx, 1, "a")
	require.NoError(t, err)
	_, err = s.Create(ctx, 1, "b")
	require.NoError(t, err)

	_, err = s.Create(ctx, 1, "c")
	require.ErrorIs(t, err, store.ErrResourceExhausted)

	// expired rows no longer count against the cap
	clock.Advance(2 * time.Hour)
	_, err = s.Create(ctx, 1, "d")
	require.NoError(t, err)
}
