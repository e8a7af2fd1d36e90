package scraper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	consolestream "github.com/wolfeidau/console-stream"

	"github.com/loadthegraphics/ltgbot/internal/models"
)

// Environment variables passed to provider commands.
const (
	EnvAction     = "LTG_ACTION"
	EnvSiteURL    = "LTG_SITE_URL"
	EnvQuery      = "LTG_QUERY"
	EnvDetailURL  = "LTG_DETAIL_URL"
	EnvTriggerURL = "LTG_TRIGGER_URL"
	EnvBlocklist  = "LTG_BLOCKLIST"
)

// Provider command actions.
const (
	ActionSearch  = "search"
	ActionOptions = "options"
	ActionFinal   = "final"
)

// ExecProviderConfig configures an external scraper command.
type ExecProviderConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string

	// Timeout bounds one command run.
	// Default: 2m
	Timeout time.Duration

	Blocklist *Blocklist
}

// ExecProvider runs an external command per scraping step.
//
// The command receives the step through LTG_* environment variables and writes one JSON object
// per line to its output: search results, download options or server links depending on
// LTG_ACTION. Lines that aren't JSON objects are logged and ignored.
type ExecProvider struct {
	cfg ExecProviderConfig
}

var _ Provider = (*ExecProvider)(nil)

// NewExecProvider creates a provider backed by cfg.Command.
func NewExecProvider(cfg ExecProviderConfig) (*ExecProvider, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("provider command is required")
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Command
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &ExecProvider{cfg: cfg}, nil
}

func (p *ExecProvider) Name() string { return p.cfg.Name }

// Search runs the search action for query on siteURL.
func (p *ExecProvider) Search(ctx context.Context, siteURL, query string) ([]models.MovieResult, error) {
	lines, err := p.run(ctx, ActionSearch, map[string]string{
		EnvSiteURL: siteURL,
		EnvQuery:   query,
	})
	if err != nil {
		return nil, err
	}

	results, err := decodeLines[models.MovieResult](lines)
	if err != nil {
		return nil, err
	}

	var valid []models.MovieResult
	for _, r := range results {
		if r.Title == "" || r.DetailURL == "" {
			continue
		}
		r.SourceSite = siteURL
		valid = append(valid, r)
	}
	return valid, nil
}

// Options runs the options action for a result's detail page.
func (p *ExecProvider) Options(ctx context.Context, result models.MovieResult) ([]models.DownloadOption, error) {
	lines, err := p.run(ctx, ActionOptions, map[string]string{
		EnvSiteURL:   result.SourceSite,
		EnvDetailURL: result.DetailURL,
	})
	if err != nil {
		return nil, err
	}

	options, err := decodeLines[models.DownloadOption](lines)
	if err != nil {
		return nil, err
	}

	var valid []models.DownloadOption
	for _, o := range options {
		if o.Quality == "" || o.TriggerURL == "" {
			continue
		}
		valid = append(valid, o)
	}
	return valid, nil
}

// FinalLink runs the final action and picks the best server link it reports.
func (p *ExecProvider) FinalLink(ctx context.Context, result models.MovieResult, option models.DownloadOption) (string, error) {
	lines, err := p.run(ctx, ActionFinal, map[string]string{
		EnvSiteURL:    result.SourceSite,
		EnvDetailURL:  result.DetailURL,
		EnvTriggerURL: option.TriggerURL,
	})
	if err != nil {
		return "", err
	}

	links, err := decodeLines[ServerLink](lines)
	if err != nil {
		return "", err
	}

	link, ok := PickServerLink(links, p.cfg.Blocklist)
	if !ok {
		return "", ErrNoLink
	}
	return link, nil
}

func (p *ExecProvider) run(ctx context.Context, action string, vars map[string]string) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	env := make(map[string]string, len(p.cfg.Env)+len(vars)+2)
	maps.Copy(env, p.cfg.Env)
	maps.Copy(env, vars)
	env[EnvAction] = action
	env[EnvBlocklist] = strings.Join(p.cfg.Blocklist.Patterns(), ",")

	process := consolestream.NewProcess(p.cfg.Command, p.cfg.Args,
		consolestream.WithPipeMode(),
		consolestream.WithFlushInterval(100*time.Millisecond),
		consolestream.WithEnvMap(env),
	)

	var output bytes.Buffer
	for event, err := range process.ExecuteAndStream(ctx) {
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrProviderFailed, p.cfg.Name, action, err)
		}

		switch e := event.Event.(type) {
		case *consolestream.OutputData:
			output.Write(e.Data)
		case *consolestream.ProcessEnd:
			log.Debug().
				Str("provider", p.cfg.Name).
				Str("action", action).
				Int("exit_code", e.ExitCode).
				Dur("duration", e.Duration).
				Msg("Provider command finished")

			if e.ExitCode != 0 {
				return nil, fmt.Errorf("%w: %s %s exited with code %d", ErrProviderFailed, p.cfg.Name, action, e.ExitCode)
			}
			return splitJSONLines(output.Bytes()), nil
		}
	}

	return nil, fmt.Errorf("%w: %s %s ended without exit status", ErrProviderFailed, p.cfg.Name, action)
}

// splitJSONLines returns the output lines that look like JSON objects.
func splitJSONLines(out []byte) [][]byte {
	var lines [][]byte
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			log.Debug().Str("line", string(line)).Msg("Provider output")
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	return lines
}

func decodeLines[T any](lines [][]byte) ([]T, error) {
	items := make([]T, 0, len(lines))
	for _, line := range lines {
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("%w: malformed output line: %w", ErrProviderFailed, err)
		}
		items = append(items, item)
	}
	return items, nil
}
