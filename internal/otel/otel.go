package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/pockett/agreementflow/internal/logger"
)

// Setup configures the global OTLP trace pipeline. An unreachable collector
// is logged and tolerated: the service runs untraced rather than refusing to
// start.
func Setup(ctx context.Context, serviceName, collectorURL string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	connectionCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	traceExporter, err := otlptracehttp.New(connectionCtx,
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(collectorURL),
	)
	if err != nil {
		logger.Error("Failed to connect to OTLP collector, continuing untraced.", err, "collector", collectorURL)
		return func(context.Context) error { return nil }, nil
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tracerProvider.Shutdown(shutdownCtx)
	}, nil
}
