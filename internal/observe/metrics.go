// Package observe provides application-wide observability primitives for
// openfloor: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [Init] bridges
// the meter provider to Prometheus so that metrics can still be scraped via
// the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all openfloor metrics.
const meterName = "github.com/quastler/openfloor"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscribeDuration tracks speech-to-text transcription latency.
	TranscribeDuration metric.Float64Histogram

	// ReplyDuration tracks reply-generation latency.
	ReplyDuration metric.Float64Histogram

	// SynthesizeDuration tracks text-to-speech synthesis latency.
	SynthesizeDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end utterance-to-reply latency.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// Recordings counts finalized utterance recordings. Use with attribute:
	//   attribute.Bool("interruption", ...)
	Recordings metric.Int64Counter

	// Interruptions counts barge-ins detected during playback.
	Interruptions metric.Int64Counter

	// EchoDiscards counts transcripts dropped as playback echo.
	EchoDiscards metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("stage", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("stage", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live conversation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
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
	if met.TranscribeDuration, err = m.Float64Histogram("openfloor.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReplyDuration, err = m.Float64Histogram("openfloor.reply.duration",
		metric.WithDescription("Latency of reply generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesizeDuration, err = m.Float64Histogram("openfloor.synthesize.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("openfloor.pipeline.duration",
		metric.WithDescription("End-to-end utterance processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Recordings, err = m.Int64Counter("openfloor.recordings",
		metric.WithDescription("Total finalized utterance recordings by interruption flag."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("openfloor.interruptions",
		metric.WithDescription("Total barge-ins detected during playback."),
	); err != nil {
		return nil, err
	}
	if met.EchoDiscards, err = m.Int64Counter("openfloor.echo.discards",
		metric.WithDescription("Total transcripts discarded as playback echo."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("openfloor.provider.requests",
		metric.WithDescription("Total provider API requests by provider, stage, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("openfloor.provider.errors",
		metric.WithDescription("Total provider errors by provider and stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("openfloor.active_sessions",
		metric.WithDescription("Number of live conversation sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("openfloor.http.request.duration",
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, stage, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, stage string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("stage", stage),
		),
	)
}

// RecordRecording is a convenience method that records one finalized
// utterance recording.
func (m *Metrics) RecordRecording(ctx context.Context, interruption bool) {
	m.Recordings.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("interruption", interruption)),
	)
}
