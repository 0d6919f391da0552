package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer installs a local SDK tracer provider that samples every span.
// endpoint is ignored and no exporter is configured, so spans are never
// sent over the network, whatever endpoint holds.
func InitTracer(_ context.Context, endpoint, serviceName, serviceVersion string) (shutdown func(context.Context) error, err error) {
	_ = endpoint // OTLP exporter wiring is an external-collaborator concern; see DESIGN.md.

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down tracer provider: %w", err)
		}
		return nil
	}, nil
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
