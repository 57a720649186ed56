package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/saudeaberta/medstock-api"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount     metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	CacheHitCount    metric.Int64Counter
	CacheMissCount   metric.Int64Counter
	ETLRunCount      metric.Int64Counter
	ETLRunDuration   metric.Float64Histogram
	RecordsFetched   metric.Int64Counter
	UnitsLoaded      metric.Int64Counter
	GeocodeAttempts  metric.Int64Counter
	CoordinatesFixed metric.Int64Counter
}

// Setup initializes the OpenTelemetry trace and metric pipelines and Go runtime metrics
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Set up metric exporter
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		GetLogger().Warn().Err(err).Msg("Failed to start runtime instrumentation")
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	if m.RequestCount, err = meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.RequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.CacheHitCount, err = meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	); err != nil {
		return nil, err
	}
	if m.CacheMissCount, err = meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	); err != nil {
		return nil, err
	}
	if m.ETLRunCount, err = meter.Int64Counter(
		"etl.run.count",
		metric.WithDescription("Number of stock ETL runs by outcome"),
	); err != nil {
		return nil, err
	}
	if m.ETLRunDuration, err = meter.Float64Histogram(
		"etl.run.duration",
		metric.WithDescription("Stock ETL run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.RecordsFetched, err = meter.Int64Counter(
		"etl.records.fetched",
		metric.WithDescription("Raw stock records read from the upstream source"),
	); err != nil {
		return nil, err
	}
	if m.UnitsLoaded, err = meter.Int64Counter(
		"etl.units.loaded",
		metric.WithDescription("Health units upserted into the store"),
	); err != nil {
		return nil, err
	}
	if m.GeocodeAttempts, err = meter.Int64Counter(
		"geocode.attempt.count",
		metric.WithDescription("Geocoding attempts by result"),
	); err != nil {
		return nil, err
	}
	if m.CoordinatesFixed, err = meter.Int64Counter(
		"backfill.coordinates.updated",
		metric.WithDescription("Health units whose coordinates were rewritten"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the span and marks it failed
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics, route string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("http.route", route)))
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics, route string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("http.route", route)))
}

// RecordETLRun records the outcome of one stock ETL run
func RecordETLRun(ctx context.Context, metrics *Metrics, outcome string, fetched, loaded int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("etl.outcome", outcome))
	metrics.ETLRunCount.Add(ctx, 1, attrs)
	metrics.ETLRunDuration.Record(ctx, duration.Seconds(), attrs)
	metrics.RecordsFetched.Add(ctx, int64(fetched))
	metrics.UnitsLoaded.Add(ctx, int64(loaded))
}

// RecordGeocodeAttempt records one geocoding call and whether it produced coordinates
func RecordGeocodeAttempt(ctx context.Context, metrics *Metrics, result string) {
	if metrics == nil {
		return
	}
	metrics.GeocodeAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("geocode.result", result)))
}

// RecordCoordinatesUpdated records coordinates rewritten by the backfill job
func RecordCoordinatesUpdated(ctx context.Context, metrics *Metrics, count int) {
	if metrics == nil {
		return
	}
	metrics.CoordinatesFixed.Add(ctx, int64(count))
}
