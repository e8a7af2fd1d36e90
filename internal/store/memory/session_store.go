package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/loadthegraphics/ltgbot/internal/store"
)

var _ store.SessionStore = (*SessionStore)(nil)

// SessionStore implements store.SessionStore using in-memory storage.
// Data is lost on restart, which is acceptable for short lived search sessions.
type SessionStore struct {
	mu sync.RWMutex

	cfg store.Config

	sessions       map[string]*models.Session // session_id -> Session
	sessionsByChat map[int64][]string         // chat_id -> []session_id
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(cfg store.Config) (*SessionStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session store config: %w", err)
	}

	return &SessionStore{
		cfg:            cfg,
		sessions:       make(map[string]*models.Session),
		sessionsByChat: make(map[int64][]string),
	}, nil
}

// Create creates a new session in memory.
func (s *SessionStore) Create(ctx context.Context, chatID int64, query string) (string, error) {
	id, err := store.NewSessionID()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Now()

	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		// Expired sessions awaiting the sweep don't count against the cap
		s.sweepLocked(now)
		if len(s.sessions) >= s.cfg.MaxSessions {
			return "", store.ErrResourceExhausted
		}
	}

	s.sessions[id] = &models.Session{
		ID:        id,
		ChatID:    chatID,
		Query:     query,
		State:     models.SessionStateCreated,
		CreatedAt: now,
	}
	s.sessionsByChat[chatID] = append(s.sessionsByChat[chatID], id)

	return id, nil
}

// AttachResults replaces the results of a live session.
func (s *SessionStore) AttachResults(ctx context.Context, sessionID string, results []models.MovieResult) error {
	return s.update(sessionID, func(session *models.Session) error {
		return store.AttachResults(session, results)
	})
}

// SelectResult records the selected result of a live session.
func (s *SessionStore) SelectResult(ctx context.Context, sessionID string, index int) (models.MovieResult, error) {
	var selected models.MovieResult
	err := s.update(sessionID, func(session *models.Session) error {
		var err error
		selected, err = store.SelectResult(session, index)
		return err
	})
	return selected, err
}

// AttachDownloadOptions replaces the download options of a live session.
func (s *SessionStore) AttachDownloadOptions(ctx context.Context, sessionID string, options []models.DownloadOption) error {
	return s.update(sessionID, func(session *models.Session) error {
		return store.AttachDownloadOptions(session, options)
	})
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.liveLocked(sessionID)
	if err != nil {
		return nil, err
	}

	// Clone to avoid external modifications
	return session.Clone(), nil
}

// Delete deletes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrSessionNotFound
	}

	s.removeLocked(session)

	// an expired session is dropped but reported like a swept one
	if session.IsExpired(s.cfg.Now(), s.cfg.Retention) {
		return store.ErrSessionNotFound
	}

	return nil
}

// DeleteByChat deletes all sessions for a chat and returns how many of them were live.
func (s *SessionStore) DeleteByChat(ctx context.Context, chatID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionIDs, exists := s.sessionsByChat[chatID]
	if !exists {
		return 0, nil
	}

	now := s.cfg.Now()
	count := 0

	for _, sessionID := range sessionIDs {
		if session, ok := s.sessions[sessionID]; ok && !session.IsExpired(now, s.cfg.Retention) {
			count++
		}
		delete(s.sessions, sessionID)
	}

	delete(s.sessionsByChat, chatID)

	return count, nil
}

// Sweep deletes all sessions expired at now.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(now), nil
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// update applies fn to a live session under the write lock. fn must leave the
// session untouched when it returns an error.
func (s *SessionStore) update(sessionID string, fn func(*models.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.liveLocked(sessionID)
	if err != nil {
		return err
	}

	return fn(session)
}

func (s *SessionStore) liveLocked(sessionID string) (*models.Session, error) {
	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	if session.IsExpired(s.cfg.Now(), s.cfg.Retention) {
		return nil, store.ErrSessionNotFound
	}

	return session, nil
}

func (s *SessionStore) sweepLocked(now time.Time) int {
	var toDelete []*models.Session

	for _, session := range s.sessions {
		if session.IsExpired(now, s.cfg.Retention) {
			toDelete = append(toDelete, session)
		}
	}

	for _, session := range toDelete {
		s.removeLocked(session)
	}

	return len(toDelete)
}

// removeLocked removes a session and its chat index entry.
func (s *SessionStore) removeLocked(session *models.Session) {
	delete(s.sessions, session.ID)

	sessionIDs := s.sessionsByChat[session.ChatID]
	for i, id := range sessionIDs {
		if id == session.ID {
			s.sessionsByChat[session.ChatID] = append(sessionIDs[:i], sessionIDs[i+1:]...)
			break
		}
	}
	// Clean up empty entries
	if len(s.sessionsByChat[session.ChatID]) == 0 {
		delete(s.sessionsByChat, session.ChatID)
	}
}
