// Package observe provides application-wide observability primitives for
// Centinela: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Centinela metrics.
const meterName = "github.com/centinelalabs/centinela"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DecisionDuration tracks time from session creation to the terminal
	// decision.
	DecisionDuration metric.Float64Histogram

	// Decisions counts terminal decisions. Use with attributes:
	//   attribute.String("result", ...), attribute.String("reason", ...)
	Decisions metric.Int64Counter

	// SessionsRejected counts rejected session creations. Use with attribute:
	//   attribute.String("cause", ...)
	SessionsRejected metric.Int64Counter

	// RecognizerErrors counts recognizer stream failures by provider.
	RecognizerErrors metric.Int64Counter

	// AudioBytes counts inbound audio payload bytes after decoding.
	AudioBytes metric.Int64Counter

	// ActiveSessions tracks the number of live detection sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// sub-four-second call classification latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 2.5, 3, 3.5, 4, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DecisionDuration, err = m.Float64Histogram("centinela.decision.duration",
		metric.WithDescription("Time from session creation to the terminal decision."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Decisions, err = m.Int64Counter("centinela.decisions",
		metric.WithDescription("Terminal decisions by result and reason."),
	); err != nil {
		return nil, err
	}
	if met.SessionsRejected, err = m.Int64Counter("centinela.sessions.rejected",
		metric.WithDescription("Rejected session creations by cause."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerErrors, err = m.Int64Counter("centinela.recognizer.errors",
		metric.WithDescription("Recognizer stream failures by provider."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytes, err = m.Int64Counter("centinela.audio.bytes",
		metric.WithDescription("Inbound audio payload bytes after decoding."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("centinela.active_sessions",
		metric.WithDescription("Number of live detection sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("centinela.http.request.duration",
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

// RecordDecision records one terminal decision: the latency histogram sample
// and the result/reason counter increment.
func (m *Metrics) RecordDecision(ctx context.Context, result, reason string, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("result", result),
		attribute.String("reason", reason),
	)
	m.DecisionDuration.Record(ctx, latency.Seconds(), attrs)
	m.Decisions.Add(ctx, 1, attrs)
}

// RecordRejection records a refused session creation with its cause
// ("duplicate" or "capacity").
func (m *Metrics) RecordRejection(ctx context.Context, cause string) {
	m.SessionsRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("cause", cause)),
	)
}

// RecordRecognizerError records one recognizer stream failure.
func (m *Metrics) RecordRecognizerError(ctx context.Context, provider string) {
	m.RecognizerErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordAudioBytes records decoded inbound audio volume.
func (m *Metrics) RecordAudioBytes(ctx context.Context, n int) {
	m.AudioBytes.Add(ctx, int64(n))
}
