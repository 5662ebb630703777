// Package telemetry wires up OpenTelemetry tracing and metrics for the
// mediator's decision pipeline: one span per handle_message/handle_action
// invocation, with one child span around the judge-chain call (covering
// both judge and chief judge); the predicate and threat watcher calls get
// no span of their own. Exporters are stdout-based, matching a
// minimal self-hosted deployment with no external collector required.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies this module in emitted spans and metrics.
const ServiceName = "quadguard"

// Shutdown flushes and closes every provider Setup installed. Callers
// should defer it and call with a bounded context so a hung exporter
// cannot block process exit indefinitely.
type Shutdown func(ctx context.Context) error

// Setup installs a global TracerProvider and MeterProvider backed by stdout
// exporters, and returns a Shutdown to flush and release them on exit.
func Setup(ctx context.Context) (Shutdown, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("telemetry: new trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: new metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	return func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown meter provider: %w", err)
		}
		return nil
	}, nil
}

// Tracer returns the package-scoped tracer for the mediator's decision
// pipeline spans.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

// Meter returns the package-scoped meter, for any metric not already
// covered by httpapi's Prometheus registry.
func Meter() metric.Meter {
	return otel.Meter(ServiceName)
}
