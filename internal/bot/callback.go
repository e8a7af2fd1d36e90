package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	callbackMovie  = "m"
	callbackOption = "o"

	// Telegram rejects callback data longer than this many bytes.
	maxCallbackData = 64
)

var ErrMalformedCallback = errors.New("malformed callback data")

type callbackData struct {
	Kind      string
	SessionID string
	Index     int
}

func (c callbackData) String() string {
	return c.Kind + ":" + c.SessionID + ":" + strconv.Itoa(c.Index)
}

func encodeCallback(kind, sessionID string, index int) string {
	return callbackData{Kind: kind, SessionID: sessionID, Index: index}.String()
}

func parseCallback(data string) (callbackData, error) {
	if len(data) > maxCallbackData {
		return callbackData{}, fmt.Errorf("%w: too long", ErrMalformedCallback)
	}

	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return callbackData{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
	}

	kind, sessionID := parts[0], parts[1]
	if kind != callbackMovie && kind != callbackOption {
		return callbackData{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedCallback, kind)
	}
	if sessionID == "" {
		return callbackData{}, fmt.Errorf("%w: empty session id", ErrMalformedCallback)
	}

	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		return callbackData{}, fmt.Errorf("%w: bad index %q", ErrMalformedCallback, parts[2])
	}

	return callbackData{Kind: kind, SessionID: sessionID, Index: index}, nil
}
