// Package observability wires OpenTelemetry tracing and metrics and builds the
// zap logger. Metrics are exported through a Prometheus registry served at /metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

var _ ports.Metrics = (*Telemetry)(nil)

// Telemetry owns the tracer and meter providers and the service instruments.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	registry       *prom.Registry
	logger         *zap.Logger

	requestCounter   metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorCounter     metric.Int64Counter
	cacheHitCounter  metric.Int64Counter
	cacheMissCounter metric.Int64Counter
	fetchCounter     metric.Int64Counter
	fetchDuration    metric.Float64Histogram
	scoreHistogram   metric.Int64Histogram
}

// Config selects service identity and exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the gRPC collector address; empty disables trace export
	OTLPEndpoint string
	SampleRate   float64
}

// InitTelemetry creates the providers, installs them globally and registers the
// instruments.
//
// Parameters:
//   - ctx: Context for exporter setup
//   - cfg: Service identity and exporter settings
//   - logger: Zap logger
//
// Returns:
//   - *Telemetry: Initialized telemetry
//   - error: Resource, exporter or instrument creation failure
func InitTelemetry(ctx context.Context, cfg Config, logger *zap.Logger) (*Telemetry, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider, err := initTracerProvider(ctx, cfg, res)

	if err != nil {
		return nil, fmt.Errorf("failed to init tracer provider: %w", err)
	}

	registry := prom.NewRegistry()
	meterProvider, err := initMeterProvider(res, registry)

	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to init meter provider: %w", err)
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer(cfg.ServiceName),
		Meter:          meterProvider.Meter(cfg.ServiceName),
		registry:       registry,
		logger:         logger,
	}

	if err := t.initInstruments(); err != nil {
		return nil, err
	}

	logger.Info("telemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.Bool("trace_export", cfg.OTLPEndpoint != ""))

	return t, nil
}

func (t *Telemetry) initInstruments() error {
	var err error

	if t.requestCounter, err = t.Meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	); err != nil {
		return err
	}

	if t.requestDuration, err = t.Meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if t.errorCounter, err = t.Meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
		metric.WithUnit("1"),
	); err != nil {
		return err
	}

	if t.cacheHitCounter, err = t.Meter.Int64Counter(
		"forecast_cache_hits_total",
		metric.WithDescription("Fetch cycles served from the forecast cache"),
		metric.WithUnit("1"),
	); err != nil {
		return err
	}

	if t.cacheMissCounter, err = t.Meter.Int64Counter(
		"forecast_cache_misses_total",
		metric.WithDescription("Fetch cycles that had to call the provider"),
		metric.WithUnit("1"),
	); err != nil {
		return err
	}

	if t.fetchCounter, err = t.Meter.Int64Counter(
		"forecast_fetches_total",
		metric.WithDescription("Completed fetch cycles by outcome"),
		metric.WithUnit("1"),
	); err != nil {
		return err
	}

	if t.fetchDuration, err = t.Meter.Float64Histogram(
		"forecast_fetch_duration_seconds",
		metric.WithDescription("Fetch cycle duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	t.scoreHistogram, err = t.Meter.Int64Histogram(
		"ride_score",
		metric.WithDescription("Distribution of computed ride-quality scores"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(10, 20, 30, 40, 50, 60, 70, 80, 90, 100),
	)

	return err
}

func initTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptrace.New(
			ctx,
			otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
			),
		)

		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		options = append(options, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(options...), nil
}

func initMeterProvider(res *resource.Resource, registry *prom.Registry) (*sdkmetric.MeterProvider, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))

	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	), nil
}

// MetricsHandler serves the Prometheus exposition of all instruments.
func (t *Telemetry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one served HTTP request.
func (t *Telemetry) RecordRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)

	t.requestCounter.Add(ctx, 1, attrs)
	t.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if statusCode >= 500 {
		t.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "http")))
	}
}

// RecordCacheHit implements ports.Metrics.
func (t *Telemetry) RecordCacheHit(ctx context.Context, key string) {
	t.cacheHitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("location", key)))
}

// RecordCacheMiss implements ports.Metrics.
func (t *Telemetry) RecordCacheMiss(ctx context.Context, key string) {
	t.cacheMissCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("location", key)))
}

// RecordFetch implements ports.Metrics.
func (t *Telemetry) RecordFetch(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	t.fetchCounter.Add(ctx, 1, attrs)
	t.fetchDuration.Record(ctx, duration.Seconds(), attrs)

	if outcome == "error" {
		t.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "fetch")))
	}
}

// RecordScore implements ports.Metrics.
func (t *Telemetry) RecordScore(ctx context.Context, policy string, score int) {
	t.scoreHistogram.Record(ctx, int64(score), metric.WithAttributes(attribute.String("policy", policy)))
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}

	return nil
}
