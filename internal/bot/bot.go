// Package bot implements the Telegram conversation: a text query starts a search session,
// inline buttons walk it through result and download option selection to a final link.
package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/loadthegraphics/ltgbot/internal/logger"
	"github.com/loadthegraphics/ltgbot/internal/scraper"
	"github.com/loadthegraphics/ltgbot/internal/store"
	"github.com/loadthegraphics/ltgbot/internal/telemetry"
)

// Config configures the bot.
type Config struct {
	// BotName is used in the welcome message.
	// Default: "Load The Graphics Bot"
	BotName string

	// MaxResults caps the result buttons shown for a search.
	// Default: 10
	MaxResults int

	// MaxOptions caps the download option buttons shown for a result.
	// Default: 10
	MaxOptions int

	// MaxButtonText caps the runes of a button label.
	// Default: 60
	MaxButtonText int

	// MaxURLLength is the longest link sent as a URL button, longer links are sent as text.
	// Default: 2048
	MaxURLLength int

	// UpdateTimeout bounds the handling of a single update, scraping included.
	// Default: 5m
	UpdateTimeout time.Duration

	// Workers is the number of updates handled concurrently. Updates of one chat are always
	// handled in order by the same worker.
	// Default: 8
	Workers int

	// QueueSize is the per worker buffer of pending updates.
	// Default: 16
	QueueSize int

	Send SendConfig
}

func (c *Config) applyDefaults() {
	if c.BotName == "" {
		c.BotName = "Load The Graphics Bot"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.MaxOptions <= 0 {
		c.MaxOptions = 10
	}
	if c.MaxButtonText <= 0 {
		c.MaxButtonText = 60
	}
	if c.MaxURLLength <= 0 {
		c.MaxURLLength = 2048
	}
	if c.UpdateTimeout == 0 {
		c.UpdateTimeout = 5 * time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
}

// Bot routes Telegram updates to the search flow.
type Bot struct {
	sender   *RetryingSender
	sessions store.SessionStore
	searcher scraper.Searcher
	cfg      Config
	metrics  *telemetry.Metrics
	handle   logger.UpdateHandler
}

// New creates a bot sending through sender.
func New(sender Sender, sessions store.SessionStore, searcher scraper.Searcher, log zerolog.Logger, cfg Config) *Bot {
	cfg.applyDefaults()

	b := &Bot{
		sender:   NewRetryingSender(sender, cfg.Send),
		sessions: sessions,
		searcher: searcher,
		cfg:      cfg,
		metrics:  telemetry.GetMetrics(),
	}
	b.handle = logger.UpdateMiddleware(log)(b.dispatch)

	return b
}

// HandleUpdate processes a single update within the configured timeout.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.UpdateTimeout)
	defer cancel()

	b.metrics.UpdatesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", logger.UpdateKind(update))))

	return b.handle(ctx, update)
}

// Run consumes updates until ctx is cancelled or updates is closed. Updates are sharded by
// chat across the workers so each chat sees its updates handled in arrival order.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	shards := make([]chan tgbotapi.Update, b.cfg.Workers)

	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, b.cfg.QueueSize)
		ch := shards[i]
		wg.Go(func() {
			for update := range ch {
				// errors are already logged by the update middleware
				_ = b.HandleUpdate(ctx, update)
			}
		})
	}

	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			select {
			case shards[shardFor(update, len(shards))] <- update:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func shardFor(update tgbotapi.Update, n int) int {
	chat := update.FromChat()
	if chat == nil {
		return 0
	}
	return int(uint64(chat.ID) % uint64(n)) // #nosec G115 - result is below n
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)

	case update.Message == nil || update.Message.Chat == nil:
		return nil

	case update.Message.IsCommand():
		if update.Message.Command() == "start" {
			return b.handleStart(ctx, update.Message)
		}
		return nil

	case update.Message.Text != "":
		return b.handleQuery(ctx, update.Message)
	}

	return nil
}
