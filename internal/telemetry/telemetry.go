// Package telemetry wires ferry's spans and metrics into OpenTelemetry.
//
// Nothing is exported unless FERRY_OTEL_ENABLED=true. When enabled, the
// destinations are chosen from the environment:
//
//	FERRY_OTEL_STDOUT=true                pretty-print spans and metrics to stdout
//	OTEL_EXPORTER_OTLP_ENDPOINT           OTLP/HTTP collector, e.g. localhost:4318
//	OTEL_EXPORTER_OTLP_TRACES_ENDPOINT    traces only, overrides the above
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT   metrics only, overrides the above
//	OTEL_SERVICE_NAME                     replaces the service name passed to Init
//
// With telemetry enabled and no destination configured, spans go to stdout.
package telemetry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/steveyegge/ferry"

const (
	stdoutMetricInterval = 15 * time.Second
	otlpMetricInterval   = 30 * time.Second
)

// installed holds the shutdown hooks of the providers Init registered.
var installed []func(context.Context) error

// Enabled reports whether FERRY_OTEL_ENABLED is "true".
func Enabled() bool {
	return os.Getenv("FERRY_OTEL_ENABLED") == "true"
}

// destinations is where telemetry is sent, read once from the environment.
type destinations struct {
	stdout          bool
	traceEndpoint   string
	metricsEndpoint string
}

func destinationsFromEnv() destinations {
	base := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	d := destinations{
		stdout:          os.Getenv("FERRY_OTEL_STDOUT") == "true",
		traceEndpoint:   cmp.Or(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"), base),
		metricsEndpoint: cmp.Or(os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"), base),
	}
	if !d.stdout && d.traceEndpoint == "" && d.metricsEndpoint == "" {
		d.stdout = true
	}
	return d
}

// Init installs the global tracer and meter providers. When telemetry is
// disabled it installs no-op providers, so instrumented code pays nothing.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cmp.Or(os.Getenv("OTEL_SERVICE_NAME"), serviceName)),
			semconv.ServiceVersion(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	dest := destinationsFromEnv()

	tp, err := newTracerProvider(ctx, res, dest)
	if err != nil {
		return fmt.Errorf("telemetry: traces: %w", err)
	}
	otel.SetTracerProvider(tp)
	installed = append(installed, tp.Shutdown)

	mp, err := newMeterProvider(ctx, res, dest)
	if err != nil {
		return fmt.Errorf("telemetry: metrics: %w", err)
	}
	otel.SetMeterProvider(mp)
	installed = append(installed, mp.Shutdown)
	return nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, dest destinations) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if dest.stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	if dest.traceEndpoint != "" {
		exp, err := buildOTLPTraceExporter(ctx, dest.traceEndpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, dest destinations) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if dest.stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(stdoutMetricInterval))))
	}
	if dest.metricsEndpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, dest.metricsEndpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(otlpMetricInterval))))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns a tracer for the named scope, or ferry's scope when empty.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(cmp.Or(name, instrumentationScope))
}

// Meter returns a meter for the named scope, or ferry's scope when empty.
func Meter(name string) metric.Meter {
	return otel.Meter(cmp.Or(name, instrumentationScope))
}

// Shutdown flushes pending spans and metrics and stops the providers Init
// installed. It is safe to call when telemetry is disabled.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range installed {
		errs = append(errs, fn(ctx))
	}
	installed = nil
	return errors.Join(errs...)
}
