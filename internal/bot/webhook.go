package bot

import (
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// maxWebhookBody caps the size of an update delivered by Telegram.
const maxWebhookBody = 1 << 20

// Webhook receives updates pushed by Telegram and hands them to Run through Updates.
type Webhook struct {
	updates chan tgbotapi.Update
}

// NewWebhook creates a webhook receiver buffering up to buffer updates.
func NewWebhook(buffer int) *Webhook {
	return &Webhook{updates: make(chan tgbotapi.Update, buffer)}
}

// Updates returns the channel of received updates.
func (w *Webhook) Updates() <-chan tgbotapi.Update {
	return w.updates
}

func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.Header().Set("Allow", http.MethodPost)
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&update); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Invalid webhook payload")
		http.Error(rw, "invalid update", http.StatusBadRequest)
		return
	}

	select {
	case w.updates <- update:
		rw.WriteHeader(http.StatusOK)
	case <-r.Context().Done():
		// Telegram redelivers on a non 2xx response
		http.Error(rw, "busy", http.StatusServiceUnavailable)
	}
}
