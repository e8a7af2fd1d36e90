package store

import (
	"context"
	"errors"
	"time"

	"github.com/loadthegraphics/ltgbot/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrIndexOutOfRange   = errors.New("selection index out of range")
	ErrInvalidState      = errors.New("invalid session state")
	ErrResourceExhausted = errors.New("too many live sessions")
)

// SessionStore defines the interface for search session storage.
//
// A session is visible from Create until it is deleted or its age reaches the configured
// retention window. Expired sessions behave exactly like missing ones.
type SessionStore interface {
	// Create allocates a new session for chatID and returns its ID.
	Create(ctx context.Context, chatID int64, query string) (string, error)

	// AttachResults replaces the candidate results of a session.
	AttachResults(ctx context.Context, sessionID string, results []models.MovieResult) error

	// SelectResult records the user's pick and returns the selected entry.
	SelectResult(ctx context.Context, sessionID string, index int) (models.MovieResult, error)

	// AttachDownloadOptions replaces the download options of the selected result.
	AttachDownloadOptions(ctx context.Context, sessionID string, options []models.DownloadOption) error

	// Get returns a copy of a live session.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// Delete removes a session once its flow is complete.
	Delete(ctx context.Context, sessionID string) error

	// DeleteByChat removes every session owned by chatID.
	DeleteByChat(ctx context.Context, chatID int64) (int, error)

	// Sweep removes every session expired at now and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
