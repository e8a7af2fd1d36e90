package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/loadthegraphics/ltgbot/internal/bot"
	httpmiddleware "github.com/loadthegraphics/ltgbot/internal/http"
	"github.com/loadthegraphics/ltgbot/internal/janitor"
	"github.com/loadthegraphics/ltgbot/internal/scraper"
	"github.com/loadthegraphics/ltgbot/internal/store"
)

const (
	modePolling = "polling"
	modeWebhook = "webhook"

	webhookPathPrefix = "/telegram/"
)

type BotCmd struct {
	// Telegram configuration
	Token         string        `help:"Telegram bot token" env:"TELEGRAM_BOT_TOKEN" required:""`
	BotName       string        `help:"name used in the welcome message" default:"Load The Graphics Bot" env:"LTG_BOT_NAME"`
	Mode          string        `help:"how updates are received (polling or webhook)" default:"polling" env:"LTG_MODE" enum:"polling,webhook"`
	WebhookURL    string        `help:"public base URL Telegram delivers webhook updates to" env:"LTG_WEBHOOK_URL"`
	WebhookSecret string        `help:"secret path segment of the webhook route" env:"LTG_WEBHOOK_SECRET"`
	PollTimeout   int           `help:"long polling timeout in seconds" default:"60" env:"LTG_POLL_TIMEOUT"`
	Workers       int           `help:"number of updates handled concurrently" default:"8" env:"LTG_WORKERS"`
	UpdateTimeout time.Duration `help:"time limit for handling one update" default:"5m" env:"LTG_UPDATE_TIMEOUT"`

	// Server configuration
	Listen string `help:"health and webhook HTTP listen address" default:"0.0.0.0:8080" env:"LTG_LISTEN"`

	// Session configuration
	SweepInterval time.Duration `help:"interval between expired session sweeps" default:"5m" env:"LTG_SWEEP_INTERVAL"`
	Store         StoreFlags    `embed:""`

	// Scraper configuration
	SitesFile     string        `help:"YAML file listing source sites and their scrapers" env:"LTG_SITES_FILE"`
	SourceListURL string        `help:"page listing movie source sites" default:"https://vglist.nl/" env:"LTG_SOURCE_LIST_URL"`
	CacheDir      string        `help:"directory for the scraper HTTP cache, empty keeps it in memory" env:"LTG_CACHE_DIR"`
	Concurrency   int           `help:"number of sites searched at once" default:"4" env:"LTG_SCRAPER_CONCURRENCY"`
	SiteTimeout   time.Duration `help:"time limit for searching one site" default:"90s" env:"LTG_SCRAPER_SITE_TIMEOUT"`

	Tracing bool `help:"enable tracing" default:"false" env:"LTG_TRACING"`
}

func (c *BotCmd) Validate() error {
	if c.Mode == modeWebhook {
		if c.WebhookURL == "" {
			return errors.New("webhook URL is required in webhook mode (--webhook-url or LTG_WEBHOOK_URL)")
		}
		if c.WebhookSecret == "" {
			return errors.New("webhook secret is required in webhook mode (--webhook-secret or LTG_WEBHOOK_SECRET)")
		}
	}
	return nil
}

func (c *BotCmd) Run(ctx context.Context, globals *Globals) error {
	log := setupLogger(globals)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting bot")

	shutdownTelemetry := setupTelemetry(ctx, log, c.Tracing, globals.Version)
	defer shutdownTelemetry()

	sessions, closeStore, err := c.Store.open(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	searcher, err := c.searcher(log)
	if err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	b := bot.New(api, sessions, searcher, log, bot.Config{
		BotName:       c.BotName,
		UpdateTimeout: c.UpdateTimeout,
		Workers:       c.Workers,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", httpmiddleware.HealthHandler())
	mux.Handle("GET /readyz", httpmiddleware.ReadyHandler(5*time.Second, readinessChecks(sessions)))

	var updates <-chan tgbotapi.Update

	switch c.Mode {
	case modeWebhook:
		webhook := bot.NewWebhook(c.Workers * 16)
		mux.Handle("POST "+webhookPathPrefix+c.WebhookSecret, webhook)

		wh, err := tgbotapi.NewWebhook(strings.TrimRight(c.WebhookURL, "/") + webhookPathPrefix + c.WebhookSecret)
		if err != nil {
			return fmt.Errorf("invalid webhook URL: %w", err)
		}
		if _, err := api.Request(wh); err != nil {
			return fmt.Errorf("failed to register webhook: %w", err)
		}

		log.Info().Str("url", c.WebhookURL).Msg("Receiving updates by webhook")
		updates = webhook.Updates()

	default:
		// polling is refused while a webhook is registered
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn().Err(err).Msg("Failed to remove webhook")
		}

		u := tgbotapi.NewUpdate(0)
		u.Timeout = c.PollTimeout
		updates = api.GetUpdatesChan(u)
		defer api.StopReceivingUpdates()

		log.Info().Msg("Receiving updates by long polling")
	}

	handler := httpmiddleware.RequestLogger(log, redactWebhookPath)(httpmiddleware.ClientIPMiddleware()(mux))
	srv := httpmiddleware.NewServer(c.Listen, handler)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return httpmiddleware.Serve(ctx, srv)
	})

	g.Go(func() error {
		defer cancel()
		return janitor.New(sessions, janitor.Config{Interval: c.SweepInterval}).Run(ctx)
	})

	g.Go(func() error {
		defer cancel()
		return b.Run(ctx, updates)
	})

	err = g.Wait()
	log.Info().Msg("Bot stopped")
	return err
}

func (c *BotCmd) searcher(log zerolog.Logger) (scraper.Searcher, error) {
	sites := &scraper.SitesFile{}
	if c.SitesFile != "" {
		var err error
		sites, err = scraper.LoadSitesFile(c.SitesFile)
		if err != nil {
			return nil, err
		}
	}
	if sites.SourceListURL == "" {
		sites.SourceListURL = c.SourceListURL
	}

	blocklist := scraper.DefaultBlocklist(sites.Blocklist...)

	registry, err := sites.BuildRegistry(blocklist)
	if err != nil {
		return nil, fmt.Errorf("failed to build scraper registry: %w", err)
	}
	if registry.Len() == 0 && sites.Default == nil {
		log.Warn().Msg("No scrapers configured, searches will not find anything")
	}

	client := scraper.NewHTTPClient(scraper.ClientConfig{
		CacheDir:  c.CacheDir,
		Blocklist: blocklist,
	})

	return scraper.NewAggregator(sites.BuildSources(client), registry, scraper.AggregatorConfig{
		Concurrency: c.Concurrency,
		SiteTimeout: c.SiteTimeout,
	}), nil
}

func readinessChecks(sessions store.SessionStore) map[string]httpmiddleware.Checker {
	checks := map[string]httpmiddleware.Checker{}
	if p, ok := sessions.(store.Pinger); ok {
		checks["store"] = p
	}
	return checks
}

func redactWebhookPath(path string) string {
	if strings.HasPrefix(path, webhookPathPrefix) {
		return webhookPathPrefix + "[redacted]"
	}
	return path
}
