// Package telemetry sets up OpenTelemetry metrics and tracing for the server.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Service owns the meter and tracer providers
type Service struct {
	cfg            config.TelemetryConfig
	registry       *prometheus.Registry
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
}

// NewService builds the providers described by cfg and installs them as the
// otel globals
func NewService(ctx context.Context, cfg config.TelemetryConfig, version string) (*Service, error) {
	s := &Service{cfg: cfg, meter: noop.NewMeterProvider().Meter(cfg.ServiceName)}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	if cfg.MetricsEnabled {
		if err := s.initMetrics(ctx, res); err != nil {
			return nil, err
		}
	}

	if cfg.TracingEnabled {
		if err := s.initTracing(ctx, res); err != nil {
			return nil, err
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slogging.Get().Info("Telemetry initialized (metrics=%t, tracing=%t)", cfg.MetricsEnabled, cfg.TracingEnabled)
	return s, nil
}

func (s *Service) initMetrics(ctx context.Context, res *resource.Resource) error {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(s.registry))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	}
	// the pull endpoint stays available when a collector is also configured
	if s.cfg.OTLPEndpoint != "" {
		pusher, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(otlpHost(s.cfg.OTLPEndpoint)),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(pusher)))
	}

	s.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(s.meterProvider)
	s.meter = s.meterProvider.Meter(s.cfg.ServiceName)
	return nil
}

func (s *Service) initTracing(ctx context.Context, res *resource.Resource) error {
	var exporter sdktrace.SpanExporter
	var err error

	if s.cfg.OTLPEndpoint != "" {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(otlpHost(s.cfg.OTLPEndpoint)),
			otlptracegrpc.WithInsecure(),
		)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	s.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(s.tracerProvider)
	return nil
}

// Meter returns the service meter, a no-op meter when metrics are disabled
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// Tracer returns a named tracer from the global provider
func (s *Service) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// MetricsHandler serves the Prometheus scrape endpoint, or 404 when metrics are disabled
func (s *Service) MetricsHandler() http.Handler {
	if s.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the providers
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if s.tracerProvider != nil {
		if err := s.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if s.meterProvider != nil {
		if err := s.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// otlpHost strips the scheme the gRPC exporters do not accept
func otlpHost(endpoint string) string {
	return strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
}
