package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flowmarket/genflow/pkg/genflow/observability"
)

// findMetric locates a metric by name in collected data.
func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestMetricsRecorder_RecordsThroughOTel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	rec := observability.NewMetricsRecorder()
	ctx := context.Background()

	rec.RecordGeneration(ctx, "success", 2, 1500*time.Millisecond)
	rec.RecordGeneration(ctx, "invalid", 3, 4*time.Second)
	rec.RecordProviderCall(ctx, "gpt-4o", 800*time.Millisecond, nil)
	rec.RecordProviderCall(ctx, "gpt-4o", 200*time.Millisecond, errors.New("boom"))
	rec.RecordValidationFailure(ctx, 2)
	rec.RecordCreditsDebited(ctx, 5)
	rec.RecordCreditsDebited(ctx, 5)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	runs, ok := findMetric(rm, "genflow.generation.runs")
	require.True(t, ok, "generation runs counter missing")
	runsSum := runs.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range runsSum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	calls, ok := findMetric(rm, "genflow.provider.calls")
	require.True(t, ok, "provider calls counter missing")
	callsSum := calls.Data.(metricdata.Sum[int64])
	total = 0
	for _, dp := range callsSum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	provErrors, ok := findMetric(rm, "genflow.provider.errors")
	require.True(t, ok, "provider errors counter missing")
	errSum := provErrors.Data.(metricdata.Sum[int64])
	total = 0
	for _, dp := range errSum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(1), total)

	debited, ok := findMetric(rm, "genflow.credits.debited")
	require.True(t, ok, "credits counter missing")
	debitSum := debited.Data.(metricdata.Sum[int64])
	total = 0
	for _, dp := range debitSum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(10), total)

	failures, ok := findMetric(rm, "genflow.validation.failures")
	require.True(t, ok, "validation failures counter missing")
	failSum := failures.Data.(metricdata.Sum[int64])
	require.NotEmpty(t, failSum.DataPoints)
}

func TestSpanManager_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	spans := observability.NewSpanManager()
	ctx, genSpan := spans.StartGenerationSpan(context.Background(), "user-1", "conv-9")
	_, attemptSpan := spans.StartAttemptSpan(ctx, 1)
	spans.EndSpanWithError(attemptSpan, errors.New("invalid output"))
	spans.EndSpanWithError(genSpan, nil)

	ended := exporter.GetSpans()
	require.Len(t, ended, 2)

	// Child span ends first.
	assert.Equal(t, "genflow.attempt", ended[0].Name)
	assert.Equal(t, "genflow.generate", ended[1].Name)
	assert.Equal(t, ended[1].SpanContext.SpanID(), ended[0].Parent.SpanID())
	require.Len(t, ended[0].Events, 1) // recorded error
}

func TestNoopImplementations_DoNothing(t *testing.T) {
	ctx := context.Background()

	metrics := observability.NoopMetrics{}
	metrics.RecordGeneration(ctx, "success", 1, time.Second)
	metrics.RecordProviderCall(ctx, "gpt-4o", time.Second, nil)
	metrics.RecordValidationFailure(ctx, 1)
	metrics.RecordCreditsDebited(ctx, 5)

	spans := observability.NoopSpanManager{}
	sctx, span := spans.StartGenerationSpan(ctx, "user-1", "")
	assert.Equal(t, ctx, sctx)
	spans.EndSpanWithError(span, errors.New("ignored"))
	spans.AddSpanEvent(ctx, "event")
}
