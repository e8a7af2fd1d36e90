package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// NewSessionID generates a time-ordered session ID short enough for Telegram callback data.
// A UUIDv7 encodes to at most 22 base58 characters.
func NewSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base58.Encode(id[:]), nil
}
