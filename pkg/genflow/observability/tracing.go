package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the genflow tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("genflow")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartGenerationSpan starts a span for a whole generation call.
	// Returns the context with span and the span itself.
	StartGenerationSpan(ctx context.Context, userID, conversationID string) (context.Context, trace.Span)

	// StartAttemptSpan starts a span for one provider attempt.
	// The attempt span should be a child of the generation span.
	StartAttemptSpan(ctx context.Context, attempt int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartGenerationSpan starts a span for a whole generation call.
func (m *otelSpanManager) StartGenerationSpan(ctx context.Context, userID, conversationID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "genflow.generate",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("conversation.id", conversationID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartAttemptSpan starts a span for one provider attempt.
func (m *otelSpanManager) StartAttemptSpan(ctx context.Context, attempt int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "genflow.attempt",
		trace.WithAttributes(
			attribute.Int("attempt", attempt),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
