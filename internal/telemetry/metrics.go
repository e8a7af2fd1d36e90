package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/loadthegraphics/ltgbot"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Session metrics
	SessionsCreatedTotal   metric.Int64Counter
	SessionsRejectedTotal  metric.Int64Counter
	SessionsSweptTotal     metric.Int64Counter
	SessionsCompletedTotal metric.Int64Counter
	SessionsExpiredHits    metric.Int64Counter

	// Search metrics
	SearchesTotal      metric.Int64Counter
	SearchErrorsTotal  metric.Int64Counter
	SearchDuration     metric.Float64Histogram
	SearchResultsTotal metric.Int64Counter
	RequestsBlocked    metric.Int64Counter

	// Telegram metrics
	UpdatesTotal      metric.Int64Counter
	SendRetriesTotal  metric.Int64Counter
	SendFailuresTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Session metrics
	m.SessionsCreatedTotal, _ = meter.Int64Counter(
		"ltgbot.sessions.created.total",
		metric.WithDescription("Total number of search sessions created"),
		metric.WithUnit("{session}"),
	)

	m.SessionsRejectedTotal, _ = meter.Int64Counter(
		"ltgbot.sessions.rejected.total",
		metric.WithDescription("Total number of sessions rejected because the store was full"),
		metric.WithUnit("{session}"),
	)

	m.SessionsSweptTotal, _ = meter.Int64Counter(
		"ltgbot.sessions.swept.total",
		metric.WithDescription("Total number of expired sessions removed by the janitor"),
		metric.WithUnit("{session}"),
	)

	m.SessionsCompletedTotal, _ = meter.Int64Counter(
		"ltgbot.sessions.completed.total",
		metric.WithDescription("Total number of sessions that reached a final link"),
		metric.WithUnit("{session}"),
	)

	m.SessionsExpiredHits, _ = meter.Int64Counter(
		"ltgbot.sessions.expired_hits.total",
		metric.WithDescription("Total number of button presses on expired or missing sessions"),
		metric.WithUnit("{press}"),
	)

	// Search metrics
	m.SearchesTotal, _ = meter.Int64Counter(
		"ltgbot.search.total",
		metric.WithDescription("Total number of provider searches"),
		metric.WithUnit("{search}"),
	)

	m.SearchErrorsTotal, _ = meter.Int64Counter(
		"ltgbot.search.errors.total",
		metric.WithDescription("Total number of failed provider searches"),
		metric.WithUnit("{error}"),
	)

	m.SearchDuration, _ = meter.Float64Histogram(
		"ltgbot.search.duration",
		metric.WithDescription("Duration of aggregated searches"),
		metric.WithUnit("ms"),
	)

	m.SearchResultsTotal, _ = meter.Int64Counter(
		"ltgbot.search.results.total",
		metric.WithDescription("Total number of results returned by providers"),
		metric.WithUnit("{result}"),
	)

	m.RequestsBlocked, _ = meter.Int64Counter(
		"ltgbot.http.blocked.total",
		metric.WithDescription("Total number of outbound requests blocked as ads or trackers"),
		metric.WithUnit("{request}"),
	)

	// Telegram metrics
	m.UpdatesTotal, _ = meter.Int64Counter(
		"ltgbot.telegram.updates.total",
		metric.WithDescription("Total number of Telegram updates handled"),
		metric.WithUnit("{update}"),
	)

	m.SendRetriesTotal, _ = meter.Int64Counter(
		"ltgbot.telegram.send.retries.total",
		metric.WithDescription("Total number of retried Telegram API calls"),
		metric.WithUnit("{retry}"),
	)

	m.SendFailuresTotal, _ = meter.Int64Counter(
		"ltgbot.telegram.send.failures.total",
		metric.WithDescription("Total number of Telegram API calls that failed after retries"),
		metric.WithUnit("{error}"),
	)

	return m
}
