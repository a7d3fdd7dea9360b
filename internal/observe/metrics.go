// Package observe provides application-wide observability primitives for
// AulaVoz: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all AulaVoz metrics.
const meterName = "github.com/aulavoz/aulavoz"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ChatDuration tracks end-to-end assistant round-trip latency, from a
	// message leaving the gateway to the backend reply being delivered.
	ChatDuration metric.Float64Histogram

	// BackendRequestDuration tracks individual backend HTTP call latency.
	BackendRequestDuration metric.Float64Histogram

	// --- Counters ---

	// MatchOutcomes counts voice-command match attempts. Use with attributes:
	//   attribute.String("table", ...), attribute.String("tier", ...)
	// where tier is one of "exact", "overlap", "substring", or "none".
	MatchOutcomes metric.Int64Counter

	// FeedbackSubmissions counts feedback submissions. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	// where kind is "quick" or "detailed".
	FeedbackSubmissions metric.Int64Counter

	// Utterances counts synthesized speech utterances sent to widgets.
	Utterances metric.Int64Counter

	// --- Error counters ---

	// BackendErrors counts failed backend calls. Use with attribute:
	//   attribute.String("operation", ...)
	BackendErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live widget sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ListeningSessions tracks the number of sessions currently capturing
	// speech.
	ListeningSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for conversational round-trip latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ChatDuration, err = m.Float64Histogram("aulavoz.chat.duration",
		metric.WithDescription("End-to-end assistant round-trip latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendRequestDuration, err = m.Float64Histogram("aulavoz.backend.request.duration",
		metric.WithDescription("Latency of individual backend HTTP calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MatchOutcomes, err = m.Int64Counter("aulavoz.match.outcomes",
		metric.WithDescription("Total voice-command match attempts by table and tier."),
	); err != nil {
		return nil, err
	}
	if met.FeedbackSubmissions, err = m.Int64Counter("aulavoz.feedback.submissions",
		metric.WithDescription("Total feedback submissions by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("aulavoz.speech.utterances",
		metric.WithDescription("Total synthesized utterances sent to widgets."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.BackendErrors, err = m.Int64Counter("aulavoz.backend.errors",
		metric.WithDescription("Total failed backend calls by operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("aulavoz.active_sessions",
		metric.WithDescription("Number of live widget sessions."),
	); err != nil {
		return nil, err
	}
	if met.ListeningSessions, err = m.Int64UpDownCounter("aulavoz.listening_sessions",
		metric.WithDescription("Number of sessions currently capturing speech."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("aulavoz.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordMatchOutcome records a voice-command match attempt with the standard
// attribute set.
func (m *Metrics) RecordMatchOutcome(ctx context.Context, table, tier string) {
	m.MatchOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("table", table),
			attribute.String("tier", tier),
		),
	)
}

// RecordFeedbackSubmission records a feedback submission with the standard
// attribute set.
func (m *Metrics) RecordFeedbackSubmission(ctx context.Context, kind, status string) {
	m.FeedbackSubmissions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordBackendError records a failed backend call for the given operation.
func (m *Metrics) RecordBackendError(ctx context.Context, operation string) {
	m.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("operation", operation)),
	)
}
