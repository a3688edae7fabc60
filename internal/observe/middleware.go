package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseTap records what the handler wrote: the status code and the
// payload size.
type responseTap struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (t *responseTap) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTap) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	t.bytes += n
	return n, err
}

// Middleware instruments the operational HTTP surface: health, readiness
// and metrics. It extracts W3C trace context from incoming headers (or
// starts a new trace), wraps the request in a span, stamps X-Correlation-ID
// from the trace ID, records the request-duration histogram, and logs
// completion. Successful traffic — overwhelmingly scrapes and probe hits —
// logs at debug so a healthy server stays quiet; server errors log at warn.
//
// The conversation WebSocket is served outside this middleware: a hijacked
// connection has neither a status code nor a meaningful duration.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			tap := &responseTap{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tap, r.WithContext(ctx))

			duration := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, duration.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", r.URL.Path),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(tap.status))

			level := slog.LevelDebug
			if tap.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			slog.LogAttrs(ctx, level, "request completed",
				slog.String("trace_id", cid),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", tap.status),
				slog.Int("bytes", tap.bytes),
				slog.Duration("duration", duration),
			)
		})
	}
}
