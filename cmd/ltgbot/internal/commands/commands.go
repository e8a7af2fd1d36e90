package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/loadthegraphics/ltgbot/internal/logger"
	"github.com/loadthegraphics/ltgbot/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
}

// setupLogger configures the process logger and makes it the package level default.
func setupLogger(globals *Globals) zerolog.Logger {
	log := logger.Setup(globals.Debug)
	zlog.Logger = log
	return log
}

// setupTelemetry starts exporters when enabled and returns the matching shutdown.
func setupTelemetry(ctx context.Context, log zerolog.Logger, enabled bool, version string) func() {
	if !enabled {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
		ServiceName: "ltgbot",
		Version:     version,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}
