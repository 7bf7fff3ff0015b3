// Package telemetry installs the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Standard OTLP exporter variables. Spans are exported only when one is set.
const (
	EnvOTLPEndpoint       = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPTracesEndpoint = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
)

// Options configure Setup.
type Options struct {
	ServiceName string
	// Role distinguishes the parent process from workers in exported spans.
	Role   string
	Getenv func(string) string
	// Exporter overrides the OTLP exporter, for tests.
	Exporter sdktrace.SpanExporter
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Setup installs a tracer provider and the W3C trace-context propagator.
// Without an exporter spans are still created, so trace ids propagate to
// workers and appear in logs.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	name := opts.ServiceName
	if name == "" {
		name = "toolbench"
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if opts.Role != "" {
		attrs = append(attrs, attribute.String("toolbench.role", opts.Role))
	}
	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	}

	exporter := opts.Exporter
	if exporter == nil && exportEnabled(getenv) {
		created, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		exporter = created
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}

func exportEnabled(getenv func(string) string) bool {
	return strings.TrimSpace(getenv(EnvOTLPEndpoint)) != "" || strings.TrimSpace(getenv(EnvOTLPTracesEndpoint)) != ""
}
