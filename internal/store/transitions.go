package store

import (
	"fmt"

	"github.com/loadthegraphics/ltgbot/internal/models"
)

// The functions below hold the forward-only transition rules shared by every backend.
// Each either fully applies the change or returns an error leaving the session untouched.

// AttachResults replaces the results of a session that has not yet had a selection.
func AttachResults(s *models.Session, results []models.MovieResult) error {
	switch s.State {
	case models.SessionStateCreated, models.SessionStateResultsAttached:
	default:
		return fmt.Errorf("%w: cannot attach results in state %s", ErrInvalidState, s.State)
	}

	s.Results = append([]models.MovieResult(nil), results...)
	s.State = models.SessionStateResultsAttached
	return nil
}

// SelectResult records index as the selected result.
func SelectResult(s *models.Session, index int) (models.MovieResult, error) {
	// state is checked before the index, so a session past selection reports ErrInvalidState
	switch s.State {
	case models.SessionStateResultsAttached, models.SessionStateResultSelected:
	default:
		return models.MovieResult{}, fmt.Errorf("%w: cannot select a result in state %s", ErrInvalidState, s.State)
	}

	if index < 0 || index >= len(s.Results) {
		return models.MovieResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(s.Results))
	}

	s.SelectedIndex = &index
	s.State = models.SessionStateResultSelected
	return s.Results[index], nil
}

// AttachDownloadOptions replaces the download options of a session with a selection.
func AttachDownloadOptions(s *models.Session, options []models.DownloadOption) error {
	switch s.State {
	case models.SessionStateResultSelected, models.SessionStateOptionsAttached:
	default:
		return fmt.Errorf("%w: cannot attach download options in state %s", ErrInvalidState, s.State)
	}

	s.DownloadOptions = append([]models.DownloadOption(nil), options...)
	s.State = models.SessionStateOptionsAttached
	return nil
}
