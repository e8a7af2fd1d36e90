package bot

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/loadthegraphics/ltgbot/internal/telemetry"
)

// Sender is the subset of the Telegram Bot API used by the bot. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ Sender = (*tgbotapi.BotAPI)(nil)

// SendConfig configures retries of Bot API calls.
type SendConfig struct {
	// MaxTries is the total number of attempts per call.
	// Default: 3
	MaxTries uint

	// InitialInterval is the first backoff between attempts for transient failures.
	// Default: 500ms
	InitialInterval time.Duration

	// MaxElapsed bounds the total time spent on a single call, including retry_after waits.
	// Default: 1m
	MaxElapsed time.Duration
}

func (c *SendConfig) applyDefaults() {
	if c.MaxTries == 0 {
		c.MaxTries = 3
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxElapsed == 0 {
		c.MaxElapsed = time.Minute
	}
}

// RetryingSender retries Bot API calls that fail with flood control, server errors or
// network errors. Other API errors are returned immediately.
type RetryingSender struct {
	next    Sender
	cfg     SendConfig
	metrics *telemetry.Metrics
}

// NewRetryingSender wraps next with retries.
func NewRetryingSender(next Sender, cfg SendConfig) *RetryingSender {
	cfg.applyDefaults()
	return &RetryingSender{
		next:    next,
		cfg:     cfg,
		metrics: telemetry.GetMetrics(),
	}
}

// Send sends c and returns the resulting message.
func (s *RetryingSender) Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return retry(ctx, s, func() (tgbotapi.Message, error) {
		return s.next.Send(c)
	})
}

// Request performs a call whose result is not a message, such as answering a callback.
func (s *RetryingSender) Request(ctx context.Context, c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return retry(ctx, s, func() (*tgbotapi.APIResponse, error) {
		return s.next.Request(c)
	})
}

func retry[T any](ctx context.Context, s *RetryingSender, call func() (T, error)) (T, error) {
	var lastErr error

	op := func() (T, error) {
		res, err := call()
		if err != nil {
			lastErr = err
			return res, classifySendError(err)
		}
		return res, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.cfg.MaxTries),
		backoff.WithMaxElapsedTime(s.cfg.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.metrics.SendRetriesTotal.Add(ctx, 1)
			log.Debug().Err(err).Dur("next", next).Msg("Retrying Telegram API call")
		}),
	)
	if err != nil {
		s.metrics.SendFailuresTotal.Add(ctx, 1)
		if lastErr != nil && ctx.Err() == nil {
			return res, lastErr
		}
		return res, err
	}

	return res, nil
}

// classifySendError maps a Bot API error onto the backoff retry semantics.
func classifySendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.RetryAfter > 0:
			return backoff.RetryAfter(apiErr.RetryAfter)
		case apiErr.Code >= http.StatusInternalServerError:
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err
	}

	return backoff.Permanent(err)
}
