package observability

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sidequest/backend/pkg/config"
)

const instrumentationName = "github.com/sidequest/backend"

// Metrics holds the instruments shared across packages. A nil *Metrics is
// valid everywhere and records nothing.
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	DBQueryDuration    metric.Float64Histogram
	CacheHitCount      metric.Int64Counter
	CacheMissCount     metric.Int64Counter
	FeedReplenishCount metric.Int64Counter
	CandidateDropCount metric.Int64Counter

	meter metric.Meter
}

const metricExportInterval = 15 * time.Second

// Setup installs OTLP/gRPC exporters for traces, metrics and logs, starts Go
// runtime metrics and sets the W3C propagators. Call it after InitLogger and
// before InitMetrics. The returned func flushes and stops every exporter.
func Setup(ctx context.Context, cfg *config.OTELConfig) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (func(context.Context) error, error) {
		_ = shutdown(ctx)
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return fail(err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	shutdowns = append(shutdowns, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return fail(err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricExportInterval))),
		sdkmetric.WithResource(res),
	)
	shutdowns = append(shutdowns, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return fail(err)
	}

	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(cfg.Endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return fail(err)
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	shutdowns = append(shutdowns, loggerProvider.Shutdown)
	log.Logger = log.Logger.Hook(newExportHook(loggerProvider.Logger(instrumentationName)))

	return shutdown, nil
}

type instrumentBuilder struct {
	meter metric.Meter
	errs  []error
}

func (b *instrumentBuilder) counter(name, description string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(description))
	b.errs = append(b.errs, err)
	return c
}

func (b *instrumentBuilder) millis(name, description string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit("ms"))
	b.errs = append(b.errs, err)
	return h
}

// InitMetrics creates the application instruments on the global meter provider
func InitMetrics() (*Metrics, error) {
	b := &instrumentBuilder{meter: otel.Meter(instrumentationName)}
	m := &Metrics{
		RequestCount:       b.counter("http.server.request.count", "Number of HTTP requests"),
		RequestDuration:    b.millis("http.server.request.duration", "HTTP request duration in milliseconds"),
		DBQueryDuration:    b.millis("store.operation.duration", "Document store operation duration in milliseconds"),
		CacheHitCount:      b.counter("cache.hit.count", "Number of cache hits"),
		CacheMissCount:     b.counter("cache.miss.count", "Number of cache misses"),
		FeedReplenishCount: b.counter("feed.replenish.count", "Number of feed replenishments by outcome"),
		CandidateDropCount: b.counter("feed.candidates.dropped", "Candidates dropped by client-side exclusion filtering"),
		meter:              b.meter,
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveGauge reports the value of current on every metric collection
func ObserveGauge(metrics *Metrics, name, description string, current func() int) error {
	if metrics == nil {
		return nil
	}
	_, err := metrics.meter.Int64ObservableGauge(name,
		metric.WithDescription(description),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(current()))
			return nil
		}),
	)
	return err
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records an HTTP request against its route pattern
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, route string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	opt := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	metrics.RequestCount.Add(ctx, 1, opt)
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordDBMetric records a document store operation
func RecordDBMetric(ctx context.Context, metrics *Metrics, operation string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("store.operation", operation)))
}

// RecordCacheHit counts a hit in the named cache (a collection, or "http")
func RecordCacheHit(ctx context.Context, metrics *Metrics, cache string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

// RecordCacheMiss counts a miss in the named cache
func RecordCacheMiss(ctx context.Context, metrics *Metrics, cache string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

// RecordFeedReplenish records a replenishment outcome (ok, empty, error, discarded)
func RecordFeedReplenish(ctx context.Context, metrics *Metrics, outcome string, added int) {
	if metrics == nil {
		return
	}
	metrics.FeedReplenishCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("feed.outcome", outcome),
		attribute.Int("feed.added", added),
	))
}

// RecordCandidateDrops records how many over-fetched candidates were filtered out
func RecordCandidateDrops(ctx context.Context, metrics *Metrics, category string, dropped int) {
	if metrics == nil || dropped == 0 {
		return
	}
	metrics.CandidateDropCount.Add(ctx, int64(dropped), metric.WithAttributes(
		attribute.String("feed.category", category),
	))
}
