package logger

import (
	"context"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// UpdateHandler processes one Telegram update.
type UpdateHandler func(ctx context.Context, update tgbotapi.Update) error

// UpdateMiddleware logs each update with its kind, chat and duration and attaches a
// request scoped logger to the context.
func UpdateMiddleware(logger zerolog.Logger) func(UpdateHandler) UpdateHandler {
	return func(next UpdateHandler) UpdateHandler {
		return func(ctx context.Context, update tgbotapi.Update) error {
			started := time.Now()

			lc := logger.With().
				Int("update_id", update.UpdateID).
				Str("kind", UpdateKind(update))
			if chat := update.FromChat(); chat != nil {
				lc = lc.Int64("chat_id", chat.ID)
			}
			ctx = lc.Logger().WithContext(ctx)

			err := next(ctx, update)
			if err != nil {
				zerolog.Ctx(ctx).Error().
					Err(err).
					Dur("duration", time.Since(started)).
					Msg("update")

				return err
			}

			zerolog.Ctx(ctx).Info().
				Dur("duration", time.Since(started)).
				Msg("update")

			return nil
		}
	}
}

// UpdateKind names the part of an update the bot reacts to.
func UpdateKind(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback_query"
	case update.Message != nil && update.Message.IsCommand():
		return "command"
	case update.Message != nil:
		return "message"
	default:
		return "other"
	}
}
