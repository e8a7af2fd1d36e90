package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/loadthegraphics/ltgbot/internal/store"
	"github.com/loadthegraphics/ltgbot/internal/util"
	"github.com/rs/zerolog/log"
)

var _ store.SessionStore = (*SessionStore)(nil)

// createLockID serialises capped inserts so concurrent creates can't overshoot MaxSessions.
const createLockID = 0x6c7467 // "ltg"

const selectSessionColumns = `
	session_id, chat_id, query, state,
	results, selected_index, download_options,
	created_at
`

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
	cfg  store.Config
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool, cfg store.Config) (*SessionStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session store config: %w", err)
	}

	return &SessionStore{
		pool: pool,
		cfg:  cfg,
	}, nil
}

// Ping verifies the database is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Create creates a new session in the database.
func (s *SessionStore) Create(ctx context.Context, chatID int64, query string) (string, error) {
	id, err := store.NewSessionID()
	if err != nil {
		return "", err
	}

	// postgres keeps microsecond precision
	now := s.cfg.Now().Truncate(time.Microsecond)

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if s.cfg.MaxSessions > 0 {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, createLockID); err != nil {
				return fmt.Errorf("failed to acquire create lock: %w", err)
			}

			var live int
			err := tx.QueryRow(ctx,
				`SELECT count(*) FROM search_sessions WHERE created_at > $1`,
				s.cfg.Cutoff(now),
			).Scan(&live)
			if err != nil {
				return fmt.Errorf("failed to count live sessions: %w", err)
			}
			if live >= s.cfg.MaxSessions {
				return store.ErrResourceExhausted
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO search_sessions (session_id, chat_id, query, state, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, id, chatID, query, int16(models.SessionStateCreated), now)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("session_id", id).
		Int64("chat_id", chatID).
		Msg("Created session")

	return id, nil
}

// AttachResults replaces the results of a live session.
func (s *SessionStore) AttachResults(ctx context.Context, sessionID string, results []models.MovieResult) error {
	return s.update(ctx, sessionID, func(session *models.Session) error {
		return store.AttachResults(session, results)
	})
}

// SelectResult records the selected result of a live session.
func (s *SessionStore) SelectResult(ctx context.Context, sessionID string, index int) (models.MovieResult, error) {
	var selected models.MovieResult
	err := s.update(ctx, sessionID, func(session *models.Session) error {
		var err error
		selected, err = store.SelectResult(session, index)
		return err
	})
	return selected, err
}

// AttachDownloadOptions replaces the download options of a live session.
func (s *SessionStore) AttachDownloadOptions(ctx context.Context, sessionID string, options []models.DownloadOption) error {
	return s.update(ctx, sessionID, func(session *models.Session) error {
		return store.AttachDownloadOptions(session, options)
	})
}

// Get retrieves a live session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectSessionColumns+` FROM search_sessions WHERE session_id = $1`,
		sessionID,
	)

	session, err := scanSession(row)
	if err != nil {
		return nil, err
	}

	if session.IsExpired(s.cfg.Now(), s.cfg.Retention) {
		return nil, store.ErrSessionNotFound
	}

	return session, nil
}

// Delete deletes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	var createdAt time.Time
	err := s.pool.QueryRow(ctx,
		`DELETE FROM search_sessions WHERE session_id = $1 RETURNING created_at`,
		sessionID,
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete session: %w", mapPostgresError(err))
	}

	// an expired session is dropped but reported like a swept one
	if !createdAt.After(s.cfg.Cutoff(s.cfg.Now())) {
		return store.ErrSessionNotFound
	}

	log.Debug().
		Str("session_id", sessionID).
		Msg("Deleted session")

	return nil
}

// DeleteByChat deletes all sessions for a chat and returns how many of them were live.
func (s *SessionStore) DeleteByChat(ctx context.Context, chatID int64) (int, error) {
	var live int
	err := s.pool.QueryRow(ctx,
		`WITH deleted AS (
			DELETE FROM search_sessions WHERE chat_id = $1 RETURNING created_at
		)
		SELECT count(*) FILTER (WHERE created_at > $2) FROM deleted`,
		chatID, s.cfg.Cutoff(s.cfg.Now()),
	).Scan(&live)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions by chat: %w", mapPostgresError(err))
	}

	return live, nil
}

// Sweep deletes all sessions expired at now.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	result, err := s.pool.Exec(ctx,
		`DELETE FROM search_sessions WHERE created_at <= $1`,
		s.cfg.Cutoff(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", mapPostgresError(err))
	}

	return int(result.RowsAffected()), nil
}

// update loads a live session with a row lock, applies fn and writes it back in one transaction.
func (s *SessionStore) update(ctx context.Context, sessionID string, fn func(*models.Session) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+selectSessionColumns+` FROM search_sessions WHERE session_id = $1 FOR UPDATE`,
			sessionID,
		)

		session, err := scanSession(row)
		if err != nil {
			return err
		}

		if session.IsExpired(s.cfg.Now(), s.cfg.Retention) {
			return store.ErrSessionNotFound
		}

		if err := fn(session); err != nil {
			return err
		}

		results, err := json.Marshal(nonNilResults(session.Results))
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}

		options, err := json.Marshal(nonNilOptions(session.DownloadOptions))
		if err != nil {
			return fmt.Errorf("failed to marshal download options: %w", err)
		}

		var selected *int32
		if session.SelectedIndex != nil {
			v := util.AsInt32(*session.SelectedIndex)
			selected = &v
		}

		_, err = tx.Exec(ctx, `
			UPDATE search_sessions
			SET state = $2, results = $3, selected_index = $4, download_options = $5
			WHERE session_id = $1
		`, sessionID, int16(session.State), results, selected, options)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", mapPostgresError(err))
		}

		return nil
	})
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		session  models.Session
		state    int16
		results  []byte
		options  []byte
		selected *int32
	)

	err := row.Scan(
		&session.ID,
		&session.ChatID,
		&session.Query,
		&state,
		&results,
		&selected,
		&options,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", mapPostgresError(err))
	}

	session.State = models.SessionState(state)

	if err := json.Unmarshal(results, &session.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	if err := json.Unmarshal(options, &session.DownloadOptions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal download options: %w", err)
	}

	if selected != nil {
		i := int(*selected)
		session.SelectedIndex = &i
	}

	return &session, nil
}

func nonNilResults(r []models.MovieResult) []models.MovieResult {
	if r == nil {
		return []models.MovieResult{}
	}
	return r
}

func nonNilOptions(o []models.DownloadOption) []models.DownloadOption {
	if o == nil {
		return []models.DownloadOption{}
	}
	return o
}
