package models

import (
	"time"
)

// SessionState tracks how far a search session has progressed through the button flow.
// States only move forward; expiry and deletion end a session from any state.
type SessionState int

const (
	SessionStateCreated         SessionState = iota // query recorded, nothing scraped yet
	SessionStateResultsAttached                     // candidate movies attached
	SessionStateResultSelected                      // user picked a candidate
	SessionStateOptionsAttached                     // download options attached for the pick
)

func (s SessionState) String() string {
	switch s {
	case SessionStateCreated:
		return "created"
	case SessionStateResultsAttached:
		return "results_attached"
	case SessionStateResultSelected:
		return "result_selected"
	case SessionStateOptionsAttached:
		return "options_attached"
	default:
		return "unknown"
	}
}

// MovieResult is one candidate movie scraped from a source site.
type MovieResult struct {
	Title      string `json:"title"`
	PosterURL  string `json:"poster_url,omitempty"`
	DetailURL  string `json:"detail_url"`
	SourceSite string `json:"source_site"`
}

// DownloadOption is one quality/language variant of a selected movie.
type DownloadOption struct {
	Quality    string `json:"quality"`
	Language   string `json:"language,omitempty"`
	TriggerURL string `json:"trigger_url"`
}

// Label is the text shown on the option button.
func (o DownloadOption) Label() string {
	if o.Language == "" {
		return o.Quality
	}
	return o.Quality + " - " + o.Language
}

// Session represents one in-progress movie search for one chat.
// The session ID is embedded in button callback payloads; all other state lives in the store.
type Session struct {
	ID        string       `json:"id"`      // base58 encoded UUIDv7
	ChatID    int64        `json:"chat_id"` // Telegram chat that owns the search
	Query     string       `json:"query"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`

	Results         []MovieResult    `json:"results,omitempty"`
	SelectedIndex   *int             `json:"selected_index,omitempty"` // index into Results, nil until a candidate is picked
	DownloadOptions []DownloadOption `json:"download_options,omitempty"`
}

// ExpiresAt returns the instant the session stops being visible.
func (s *Session) ExpiresAt(retention time.Duration) time.Time {
	return s.CreatedAt.Add(retention)
}

// IsExpired reports whether the session's age has reached the retention window at now.
// Expiry is based on creation time only.
func (s *Session) IsExpired(now time.Time, retention time.Duration) bool {
	return !now.Before(s.ExpiresAt(retention))
}

// Selected returns the picked result, if any.
func (s *Session) Selected() (MovieResult, bool) {
	if s.SelectedIndex == nil {
		return MovieResult{}, false
	}
	i := *s.SelectedIndex
	if i < 0 || i >= len(s.Results) {
		return MovieResult{}, false
	}
	return s.Results[i], true
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (s *Session) Clone() *Session {
	clone := *s
	if s.Results != nil {
		clone.Results = append([]MovieResult(nil), s.Results...)
	}
	if s.DownloadOptions != nil {
		clone.DownloadOptions = append([]DownloadOption(nil), s.DownloadOptions...)
	}
	if s.SelectedIndex != nil {
		i := *s.SelectedIndex
		clone.SelectedIndex = &i
	}
	return &clone
}
