package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/loadthegraphics/ltgbot/internal/models"
	"github.com/loadthegraphics/ltgbot/internal/scraper"
	"github.com/loadthegraphics/ltgbot/internal/store"
	"github.com/loadthegraphics/ltgbot/internal/util"
)

const (
	selectedTitleRunes = 100
	linkTitleRunes     = 50
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.clearChat(ctx, msg.Chat.ID); err != nil {
		return err
	}

	return b.reply(ctx, msg.Chat.ID, fmt.Sprintf(textWelcome, b.cfg.BotName))
}

func (b *Bot) handleQuery(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	query := strings.TrimSpace(msg.Text)
	if query == "" {
		return b.reply(ctx, chatID, textEmptyQuery)
	}

	if err := b.clearChat(ctx, chatID); err != nil {
		return err
	}

	sessionID, err := b.sessions.Create(ctx, chatID, query)
	if err != nil {
		if errors.Is(err, store.ErrResourceExhausted) {
			b.metrics.SessionsRejectedTotal.Add(ctx, 1)
			return b.reply(ctx, chatID, textBusy)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.metrics.SessionsCreatedTotal.Add(ctx, 1)

	zerolog.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("query", query).
		Msg("Search started")

	status, err := b.sender.Send(ctx, tgbotapi.NewMessage(chatID, fmt.Sprintf(textSearching, query)))
	if err != nil {
		// keep going, the result list is sent as a new message instead
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to send status message")
	}

	results, err := b.searcher.Search(ctx, query)
	switch {
	case errors.Is(err, scraper.ErrNoSources):
		b.endSession(ctx, sessionID)
		return b.edit(ctx, chatID, status.MessageID, textNoSources, nil)

	case err != nil:
		b.endSession(ctx, sessionID)
		if editErr := b.edit(ctx, chatID, status.MessageID, fmt.Sprintf(textSearchFailed, query), nil); editErr != nil {
			return errors.Join(err, editErr)
		}
		return fmt.Errorf("search failed: %w", err)

	case len(results) == 0:
		b.endSession(ctx, sessionID)
		return b.edit(ctx, chatID, status.MessageID, fmt.Sprintf(textNoResults, query), nil)
	}

	results = results[:min(len(results), b.cfg.MaxResults)]

	if err := b.sessions.AttachResults(ctx, sessionID, results); err != nil {
		return b.sessionFailure(ctx, chatID, status.MessageID, err)
	}

	keyboard := resultsKeyboard(sessionID, results, b.cfg.MaxButtonText)
	return b.edit(ctx, chatID, status.MessageID, fmt.Sprintf(textResults, query, b.cfg.MaxResults), &keyboard)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	// stop the client spinner before any slow work
	if _, err := b.sender.Request(ctx, tgbotapi.NewCallback(cq.ID, "")); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to answer callback query")
	}

	// buttons are only ever attached to chat messages
	if cq.Message == nil || cq.Message.Chat == nil {
		return nil
	}

	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	data, err := parseCallback(cq.Data)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Ignoring malformed callback")
		return b.edit(ctx, chatID, messageID, textSelectionFailed, nil)
	}

	session, err := b.sessions.Get(ctx, data.SessionID)
	if err == nil && session.ChatID != chatID {
		err = store.ErrSessionNotFound
	}
	if err != nil {
		return b.sessionFailure(ctx, chatID, messageID, err)
	}

	ctx = zerolog.Ctx(ctx).With().Str("session_id", session.ID).Logger().WithContext(ctx)

	switch data.Kind {
	case callbackMovie:
		return b.handleMovieSelected(ctx, chatID, messageID, session, data.Index)
	default:
		return b.handleOptionSelected(ctx, chatID, messageID, session, data.Index)
	}
}

func (b *Bot) handleMovieSelected(ctx context.Context, chatID int64, messageID int, session *models.Session, index int) error {
	result, err := b.sessions.SelectResult(ctx, session.ID, index)
	if err != nil {
		return b.sessionFailure(ctx, chatID, messageID, err)
	}

	title := util.Truncate(result.Title, selectedTitleRunes)

	if err := b.edit(ctx, chatID, messageID, fmt.Sprintf(textFetchingOptions, title), nil); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to acknowledge selection")
	}

	options, err := b.searcher.Options(ctx, result)
	if err != nil {
		if editErr := b.edit(ctx, chatID, messageID, textSelectionFailed, nil); editErr != nil {
			return errors.Join(err, editErr)
		}
		return fmt.Errorf("failed to resolve download options: %w", err)
	}

	if len(options) == 0 {
		return b.edit(ctx, chatID, messageID, fmt.Sprintf(textNoOptions, title), nil)
	}

	options = options[:min(len(options), b.cfg.MaxOptions)]

	if err := b.sessions.AttachDownloadOptions(ctx, session.ID, options); err != nil {
		return b.sessionFailure(ctx, chatID, messageID, err)
	}

	keyboard := optionsKeyboard(session.ID, options, b.cfg.MaxButtonText)
	return b.edit(ctx, chatID, messageID, fmt.Sprintf(textOptions, title, b.cfg.MaxOptions), &keyboard)
}

func (b *Bot) handleOptionSelected(ctx context.Context, chatID int64, messageID int, session *models.Session, index int) error {
	result, ok := session.Selected()
	if !ok || session.State != models.SessionStateOptionsAttached {
		return b.sessionFailure(ctx, chatID, messageID, store.ErrInvalidState)
	}
	if index >= len(session.DownloadOptions) {
		return b.sessionFailure(ctx, chatID, messageID, store.ErrIndexOutOfRange)
	}

	option := session.DownloadOptions[index]
	title := util.Truncate(result.Title, selectedTitleRunes)

	if err := b.edit(ctx, chatID, messageID, fmt.Sprintf(textFetchingLink, option.Label(), title), nil); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to acknowledge option")
	}

	// the flow ends here whether or not a link was found
	defer b.endSession(ctx, session.ID)

	link, err := b.searcher.FinalLink(ctx, result, option)
	if err != nil {
		if !errors.Is(err, scraper.ErrNoLink) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Final link resolution failed")
		}
		return b.edit(ctx, chatID, messageID, fmt.Sprintf(textNoLink, title, option.Label()), nil)
	}

	b.metrics.SessionsCompletedTotal.Add(ctx, 1)

	short := util.Truncate(result.Title, linkTitleRunes)
	if len(link) > b.cfg.MaxURLLength {
		return b.edit(ctx, chatID, messageID, fmt.Sprintf(textLinkTooLong, short, option.Label(), link), nil)
	}

	keyboard := downloadKeyboard(link)
	return b.edit(ctx, chatID, messageID, fmt.Sprintf(textLinkReady, short, option.Label()), &keyboard)
}

// sessionFailure tells the user why their session can't continue. Missing and expired
// sessions are an expected outcome and are not reported as errors.
func (b *Bot) sessionFailure(ctx context.Context, chatID int64, messageID int, err error) error {
	if errors.Is(err, store.ErrSessionNotFound) {
		b.metrics.SessionsExpiredHits.Add(ctx, 1)
		return b.edit(ctx, chatID, messageID, textExpired, nil)
	}

	if editErr := b.edit(ctx, chatID, messageID, textSelectionFailed, nil); editErr != nil {
		return errors.Join(err, editErr)
	}

	if errors.Is(err, store.ErrInvalidState) || errors.Is(err, store.ErrIndexOutOfRange) {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Rejected stale selection")
		return nil
	}

	return err
}

func (b *Bot) clearChat(ctx context.Context, chatID int64) error {
	n, err := b.sessions.DeleteByChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to clear chat sessions: %w", err)
	}
	if n > 0 {
		zerolog.Ctx(ctx).Debug().Int("sessions", n).Msg("Cleared previous sessions")
	}
	return nil
}

func (b *Bot) endSession(ctx context.Context, sessionID string) {
	err := b.sessions.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("Failed to delete session")
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	_, err := b.sender.Send(ctx, tgbotapi.NewMessage(chatID, text))
	return err
}

// edit replaces the text (and keyboard) of a message, falling back to a new message when
// the edit is rejected or there is no message to edit.
func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	if messageID != 0 {
		var cfg tgbotapi.EditMessageTextConfig
		if keyboard != nil {
			cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
		} else {
			cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
		}

		_, err := b.sender.Send(ctx, cfg)
		if err == nil {
			return nil
		}
		zerolog.Ctx(ctx).Debug().Err(err).Int("message_id", messageID).Msg("Edit failed, sending new message")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}

	_, err := b.sender.Send(ctx, msg)
	return err
}
