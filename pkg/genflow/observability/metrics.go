package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records generation pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordGeneration records a completed generation call with its
	// outcome ("success", "invalid", "failed"), total attempts, and duration.
	RecordGeneration(ctx context.Context, outcome string, attempts int, duration time.Duration)

	// RecordProviderCall records one model provider call.
	RecordProviderCall(ctx context.Context, deployment string, duration time.Duration, err error)

	// RecordValidationFailure records a schema validation failure on
	// one attempt.
	RecordValidationFailure(ctx context.Context, ruleErrors int)

	// RecordCreditsDebited records a successful debit.
	RecordCreditsDebited(ctx context.Context, amount int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	generations        metric.Int64Counter
	generationLatency  metric.Float64Histogram
	generationAttempts metric.Int64Histogram
	providerCalls      metric.Int64Counter
	providerLatency    metric.Float64Histogram
	providerErrors     metric.Int64Counter
	validationFailures metric.Int64Counter
	creditsDebited     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("genflow")

	generations, err := meter.Int64Counter("genflow.generation.runs",
		metric.WithDescription("Number of generation calls"),
	)
	if err != nil {
		return nil, err
	}

	generationLatency, err := meter.Float64Histogram("genflow.generation.latency_ms",
		metric.WithDescription("Generation call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	generationAttempts, err := meter.Int64Histogram("genflow.generation.attempts",
		metric.WithDescription("Provider attempts per generation call"),
	)
	if err != nil {
		return nil, err
	}

	providerCalls, err := meter.Int64Counter("genflow.provider.calls",
		metric.WithDescription("Number of model provider calls"),
	)
	if err != nil {
		return nil, err
	}

	providerLatency, err := meter.Float64Histogram("genflow.provider.latency_ms",
		metric.WithDescription("Model provider call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	providerErrors, err := meter.Int64Counter("genflow.provider.errors",
		metric.WithDescription("Number of failed model provider calls"),
	)
	if err != nil {
		return nil, err
	}

	validationFailures, err := meter.Int64Counter("genflow.validation.failures",
		metric.WithDescription("Number of attempts rejected by schema validation"),
	)
	if err != nil {
		return nil, err
	}

	creditsDebited, err := meter.Int64Counter("genflow.credits.debited",
		metric.WithDescription("Credits debited for successful generations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		generations:        generations,
		generationLatency:  generationLatency,
		generationAttempts: generationAttempts,
		providerCalls:      providerCalls,
		providerLatency:    providerLatency,
		providerErrors:     providerErrors,
		validationFailures: validationFailures,
		creditsDebited:     creditsDebited,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordGeneration records a completed generation call.
func (m *otelMetrics) RecordGeneration(ctx context.Context, outcome string, attempts int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}
	m.generations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.generationLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.generationAttempts.Record(ctx, int64(attempts), metric.WithAttributes(attrs...))
}

// RecordProviderCall records one model provider call.
func (m *otelMetrics) RecordProviderCall(ctx context.Context, deployment string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("deployment", deployment),
	}
	m.providerCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.providerLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.providerErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordValidationFailure records a schema validation failure.
func (m *otelMetrics) RecordValidationFailure(ctx context.Context, ruleErrors int) {
	m.validationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("rule_errors", ruleErrors),
	))
}

// RecordCreditsDebited records a successful debit.
func (m *otelMetrics) RecordCreditsDebited(ctx context.Context, amount int) {
	m.creditsDebited.Add(ctx, int64(amount))
}
