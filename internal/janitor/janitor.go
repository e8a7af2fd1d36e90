// Package janitor periodically removes expired search sessions from a store.
package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/loadthegraphics/ltgbot/internal/telemetry"
)

// DefaultInterval is how often the janitor sweeps when no interval is configured.
const DefaultInterval = 5 * time.Minute

// Sweeper is the subset of store.SessionStore the janitor needs.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Config holds janitor settings.
type Config struct {
	// Interval between sweeps.
	// Default: 5m
	Interval time.Duration

	// Now supplies the sweep time.
	// Default: time.Now
	Now func() time.Time
}

// Janitor runs store sweeps on a fixed interval.
type Janitor struct {
	store   Sweeper
	cfg     Config
	metrics *telemetry.Metrics
}

// New creates a janitor for the given store.
func New(s Sweeper, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Janitor{
		store:   s,
		cfg:     cfg,
		metrics: telemetry.GetMetrics(),
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
// Sweep failures are logged and retried on the next tick.
func (j *Janitor) Run(ctx context.Context) error {
	log.Info().Dur("interval", j.cfg.Interval).Msg("Session janitor started")

	_, _ = j.SweepOnce(ctx)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = j.SweepOnce(ctx)
		case <-ctx.Done():
			log.Info().Msg("Session janitor stopped")
			return nil
		}
	}
}

// SweepOnce performs a single sweep and returns the number of sessions removed.
func (j *Janitor) SweepOnce(ctx context.Context) (int, error) {
	started := time.Now()

	removed, err := j.store.Sweep(ctx, j.cfg.Now())
	if err != nil {
		log.Error().Err(err).Msg("Session sweep failed")
		return 0, err
	}

	j.metrics.SessionsSweptTotal.Add(ctx, int64(removed))

	if removed > 0 {
		log.Info().
			Int("removed", removed).
			Dur("duration", time.Since(started)).
			Msg("Removed expired sessions")
	} else {
		log.Debug().Msg("No expired sessions to remove")
	}

	return removed, nil
}
