package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for all openfloor spans.
const tracerName = "github.com/quastler/openfloor"

// attrConversationID tags pipeline spans with the conversation that owns
// the turn.
var attrConversationID = attribute.Key("conversation.id")

// Tracer returns the openfloor [trace.Tracer] from the globally registered
// provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on the openfloor tracer. The caller must call
// span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StageSpan starts a span for one stage of the reply pipeline, named
// "pipeline.<stage>" and tagged with the owning conversation, so the
// transcribe, reply and synthesize spans of a single turn group together
// in a trace viewer.
func StageSpan(ctx context.Context, stage, conversationID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "pipeline."+stage,
		trace.WithAttributes(attrConversationID.String(conversationID)))
}

// CorrelationID is the trace ID of the active span in ctx, or the empty
// string when there is none. It ties together the log lines, spans and
// HTTP responses of one request or one spoken turn.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns an [slog.Logger] carrying trace_id and span_id from the
// active span in ctx, or the default logger when no span is active.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
