package observe

import (
	"context"
	"errors"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TelemetryConfig configures the OpenTelemetry SDK for the server process.
type TelemetryConfig struct {
	// ServiceName reported in telemetry resources. Default: "openfloor".
	ServiceName string

	// ServiceVersion reported in telemetry resources. When empty the main
	// module version from build info is used.
	ServiceVersion string

	// TraceExporter receives finished spans. Nil keeps spans in-process
	// with no export, which is all a single-binary deployment or a test
	// needs; an operator wiring a collector supplies an OTLP exporter.
	TraceExporter sdktrace.SpanExporter
}

// Init wires the global OTel providers: a meter provider bridged to
// Prometheus so the operational surface can expose /metrics, and a tracer
// provider for the pipeline's per-stage spans.
//
// The returned shutdown flushes and closes both providers; the app runs it
// among its closers.
func Init(ctx context.Context, cfg TelemetryConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "openfloor"
	}
	if cfg.ServiceVersion == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			cfg.ServiceVersion = bi.Main.Version
		}
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	var closers []func(context.Context) error

	// metrics, bridged to the default Prometheus registry
	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	closers = append(closers, mp.Shutdown)

	// traces
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	closers = append(closers, tp.Shutdown)

	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, closeFn := range closers {
			errs = append(errs, closeFn(ctx))
		}
		return errors.Join(errs...)
	}
	return shutdown, nil
}
