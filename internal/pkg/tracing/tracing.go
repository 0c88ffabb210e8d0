// Package tracing installs the process-wide OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ammerola/db-rest-service/internal/pkg/config"
)

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(ctx context.Context) error

// Provider is the installed tracer provider and its shutdown hook
type Provider struct {
	trace.TracerProvider
	Shutdown ShutdownFunc
}

// Option customizes Setup
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
}

// WithExporter replaces the OTLP exporter, mainly for tests
func WithExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.exporter = exporter
	}
}

// Setup installs a tracer provider according to cfg. When telemetry is
// disabled a no-op provider is returned. A failure to build the exporter is
// logged and the service continues without tracing.
func Setup(ctx context.Context, app config.AppConfig, cfg config.TelemetryConfig, logger *slog.Logger, opts ...Option) *Provider {
	disabled := &Provider{
		TracerProvider: noop.NewTracerProvider(),
		Shutdown:       func(context.Context) error { return nil },
	}
	if !cfg.Enabled {
		logger.Info("tracing disabled")
		return disabled
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	exporter := o.exporter
	if exporter == nil {
		var err error
		exporter, err = newOTLPExporter(ctx, cfg)
		if err != nil {
			logger.Warn("failed to set up tracing, continuing without it",
				slog.String("error", err.Error()))
			return disabled
		}
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(app.Name),
		semconv.ServiceVersion(app.Version),
		attribute.String("deployment.environment", app.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing enabled",
		slog.String("provider", cfg.Provider),
		slog.String("endpoint", cfg.OTLPEndpoint))

	return &Provider{
		TracerProvider: tp,
		Shutdown: func(ctx context.Context) error {
			err := tp.Shutdown(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("failed to shut down tracer provider: %w", err)
			}
			return nil
		},
	}
}

func newOTLPExporter(ctx context.Context, cfg config.TelemetryConfig) (*otlptrace.Exporter, error) {
	if cfg.Provider != "otlp" {
		return nil, fmt.Errorf("unsupported tracing provider %q", cfg.Provider)
	}
	if cfg.OTLPEndpoint == "" {
		return nil, errors.New("OTLP endpoint is not set")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
	}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}
