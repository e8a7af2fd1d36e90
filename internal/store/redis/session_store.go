package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/loadthegraphics/ltgbot/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ store.SessionStore = (*SessionStore)(nil)

const (
	// DefaultKeyPrefix namespaces every key written by the store.
	DefaultKeyPrefix = "ltg:"

	maxTxRetries = 8
)

// SessionStore implements store.SessionStore on Redis.
//
// Each session is a compressed JSON value under <prefix>session:<id> with a TTL equal to the
// retention window. A sorted set <prefix>sessions scores session IDs by creation time in
// microseconds and drives capacity checks and sweeps. A set <prefix>chat:<chatID> tracks the
// sessions of each chat.
type SessionStore struct {
	rdb    *redis.Client
	cfg    store.Config
	prefix string
	codec  *codec
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(rdb *redis.Client, cfg store.Config, prefix string) (*SessionStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session store config: %w", err)
	}

	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	c, err := newCodec()
	if err != nil {
		return nil, err
	}

	return &SessionStore{
		rdb:    rdb,
		cfg:    cfg,
		prefix: prefix,
		codec:  c,
	}, nil
}

// Close releases the codec resources. The Redis client is owned by the caller.
func (s *SessionStore) Close() {
	s.codec.close()
}

// Ping verifies Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *SessionStore) sessionKey(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "sessions"
}

func (s *SessionStore) chatKey(chatID int64) string {
	return s.prefix + "chat:" + strconv.FormatInt(chatID, 10)
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// Create creates a new session.
func (s *SessionStore) Create(ctx context.Context, chatID int64, query string) (string, error) {
	id, err := store.NewSessionID()
	if err != nil {
		return "", err
	}

	// scores are microseconds, keep CreatedAt comparable with them
	now := s.cfg.Now().Truncate(time.Microsecond)

	session := &models.Session{
		ID:        id,
		ChatID:    chatID,
		Query:     query,
		State:     models.SessionStateCreated,
		CreatedAt: now,
	}

	data, err := s.codec.encode(session)
	if err != nil {
		return "", err
	}

	txf := func(tx *redis.Tx) error {
		if s.cfg.MaxSessions > 0 {
			live, err := tx.ZCount(ctx, s.indexKey(),
				"("+strconv.FormatFloat(score(s.cfg.Cutoff(now)), 'f', -1, 64), "+inf",
			).Result()
			if err != nil {
				return fmt.Errorf("failed to count live sessions: %w", err)
			}
			if live >= int64(s.cfg.MaxSessions) {
				return store.ErrResourceExhausted
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.sessionKey(id), data, s.cfg.Retention)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: score(now), Member: id})
			pipe.SAdd(ctx, s.chatKey(chatID), id)
			pipe.Expire(ctx, s.chatKey(chatID), s.cfg.Retention)
			return nil
		})
		return err
	}

	if err := s.withRetry(ctx, txf, s.indexKey()); err != nil {
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
	session, err := s.load(ctx, s.rdb.Get, sessionID)
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
	session, err := s.load(ctx, s.rdb.Get, sessionID)
	if err != nil {
		return err
	}

	var del *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.sessionKey(sessionID))
		pipe.ZRem(ctx, s.indexKey(), sessionID)
		pipe.SRem(ctx, s.chatKey(session.ChatID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	// lost a race with another delete or the key TTL
	if del.Val() == 0 {
		return store.ErrSessionNotFound
	}

	log.Debug().
		Str("session_id", sessionID).
		Msg("Deleted session")

	return nil
}

// DeleteByChat deletes all sessions for a chat.
func (s *SessionStore) DeleteByChat(ctx context.Context, chatID int64) (int, error) {
	ids, err := s.rdb.SMembers(ctx, s.chatKey(chatID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list chat sessions: %w", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	var dels []*redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			dels = append(dels, pipe.Del(ctx, s.sessionKey(id)))
		}
		pipe.ZRem(ctx, s.indexKey(), toMembers(ids)...)
		pipe.Del(ctx, s.chatKey(chatID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chat sessions: %w", err)
	}

	removed := 0
	for _, cmd := range dels {
		removed += int(cmd.Val())
	}

	return removed, nil
}

// Sweep deletes all sessions expired at now.
//
// Session keys may already have been evicted by their TTL, so the count reflects index
// entries removed. Chat sets expire on their own once their newest member does.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(score(s.cfg.Cutoff(now)), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}

	var zrem *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		zrem = pipe.ZRem(ctx, s.indexKey(), toMembers(ids)...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return int(zrem.Val()), nil
}

// update loads a live session under WATCH, applies fn and writes it back preserving its TTL.
func (s *SessionStore) update(ctx context.Context, sessionID string, fn func(*models.Session) error) error {
	key := s.sessionKey(sessionID)

	txf := func(tx *redis.Tx) error {
		session, err := s.load(ctx, tx.Get, sessionID)
		if err != nil {
			return err
		}

		if session.IsExpired(s.cfg.Now(), s.cfg.Retention) {
			return store.ErrSessionNotFound
		}

		if err := fn(session); err != nil {
			return err
		}

		data, err := s.codec.encode(session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	return s.withRetry(ctx, txf, key)
}

// withRetry runs an optimistic transaction, retrying when a watched key changes underneath it.
func (s *SessionStore) withRetry(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := s.rdb.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.Debug().Strs("keys", keys).Msg("Redis transaction conflict, retrying")
	}
	return fmt.Errorf("redis transaction retries exhausted: %w", redis.TxFailedErr)
}

type getFunc func(ctx context.Context, key string) *redis.StringCmd

func (s *SessionStore) load(ctx context.Context, get getFunc, sessionID string) (*models.Session, error) {
	data, err := get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s.codec.decode(data)
}

func toMembers(ids []string) []any {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return members
}
