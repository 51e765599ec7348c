// Package otel provides OpenTelemetry TracerProvider, MeterProvider, and LoggerProvider
// configured with OTLP exporters, plus the auth event emitter and counters built on them.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// metricExportInterval is how often counters are pushed to the collector.
const metricExportInterval = 10 * time.Second

// Providers holds the OpenTelemetry providers and a shutdown function.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// collector is the parsed OTLP gRPC target.
type collector struct {
	host     string
	insecure bool
}

// parseCollector accepts "host:port" or a URL; any path is dropped because the gRPC exporters
// dial host:port only. Plain http (or no scheme) is insecure; https uses TLS unless forceInsecure.
func parseCollector(endpoint string, forceInsecure bool) (collector, error) {
	raw := endpoint
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return collector{}, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return collector{}, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return collector{host: u.Host, insecure: forceInsecure || u.Scheme != "https"}, nil
}

// NewProviders creates the three providers exporting over OTLP gRPC to endpoint.
// An empty endpoint yields SDK providers without exporters, so spans and counters are recorded
// in-process only and Shutdown is a no-op.
func NewProviders(ctx context.Context, endpoint, serviceName string, insecureOverride bool, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(),
			MeterProvider:  metric.NewMeterProvider(),
			LoggerProvider: sdklog.NewLoggerProvider(),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	target, err := parseCollector(endpoint, insecureOverride)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	p := &Providers{}
	var stops []func(context.Context) error
	abort := func(err error) (*Providers, error) {
		for i := len(stops) - 1; i >= 0; i-- {
			_ = stops[i](ctx)
		}
		return nil, err
	}

	if p.TracerProvider, err = newTracerProvider(ctx, target, res); err != nil {
		return abort(fmt.Errorf("trace exporter: %w", err))
	}
	stops = append(stops, p.TracerProvider.Shutdown)

	if p.MeterProvider, err = newMeterProvider(ctx, target, res); err != nil {
		return abort(fmt.Errorf("metric exporter: %w", err))
	}
	stops = append(stops, p.MeterProvider.Shutdown)

	if p.LoggerProvider, err = newLoggerProvider(ctx, target, res); err != nil {
		return abort(fmt.Errorf("log exporter: %w", err))
	}
	stops = append(stops, p.LoggerProvider.Shutdown)

	// Reverse creation order: logs, metrics, traces.
	p.Shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			if err := stops[i](ctx); err != nil {
				logger.Warn("telemetry: shutdown failed", zap.Error(err))
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	logger.Info("telemetry: exporting over OTLP", zap.String("collector", target.host), zap.Bool("insecure", target.insecure))
	return p, nil
}

func newTracerProvider(ctx context.Context, c collector, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.host)}
	if c.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res)), nil
}

func newMeterProvider(ctx context.Context, c collector, res *resource.Resource) (*metric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(c.host)}
	if c.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(metricExportInterval))),
	), nil
}

func newLoggerProvider(ctx context.Context, c collector, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(c.host)}
	if c.insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	), nil
}

// SetGlobal sets the global TracerProvider and MeterProvider so instrumentation (otelhttp, otelgrpc)
// and the auth service's otel.Tracer use them. Auth events reach the LoggerProvider through
// NewEventEmitter, not a global.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}

// Tracer returns the tracer used for auth spans.
func (p *Providers) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(instrumentationName)
}
