package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/L-Mariam/Grocery-Guessr"

// Provider implements core.Telemetry with OpenTelemetry.
type Provider struct {
	tracer        trace.Tracer
	metrics       *MetricInstruments
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider // nil when metrics go to the global meter
	logger        core.Logger
}

type options struct {
	logger     core.Logger
	spanWriter io.Writer
	processors []sdktrace.SpanProcessor
	readers    []sdkmetric.Reader
	meter      metric.Meter
	setGlobal  bool
}

// Option customises New.
type Option func(*options)

// WithLogger sets the logger used for export failures.
func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSpanWriter sets where the stdout exporter writes. Defaults to os.Stdout.
func WithSpanWriter(w io.Writer) Option {
	return func(o *options) { o.spanWriter = w }
}

// WithSpanProcessor adds a processor next to the exporter, e.g. a
// tracetest.SpanRecorder in tests.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) { o.processors = append(o.processors, p) }
}

// WithMeter records metrics on m instead of the global meter.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithMetricReader adds a reader to the SDK meter provider, e.g. a
// sdkmetric.ManualReader in tests. Ignored when WithMeter is set.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.readers = append(o.readers, r) }
}

// WithoutGlobals skips installing the tracer provider and propagator as
// process globals.
func WithoutGlobals() Option {
	return func(o *options) { o.setGlobal = false }
}

// New builds a Provider for cfg. The trace exporter is "otlp" (gRPC or
// HTTP to cfg.Endpoint, per cfg.Protocol) or "stdout"; "none" exports
// nothing, which only makes sense together with WithSpanProcessor.
// Metrics are pushed over OTLP/HTTP when cfg.MetricsEndpoint is set.
func New(ctx context.Context, cfg core.TelemetryConfig, opts ...Option) (*Provider, error) {
	o := &options{logger: &core.NoOpLogger{}, spanWriter: os.Stdout, setGlobal: true}
	for _, opt := range opts {
		opt(o)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "grocery-guessr"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", core.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}

	exporter, err := newExporter(ctx, cfg, o.spanWriter)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, p := range o.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(p))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	if o.setGlobal {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	meter := o.meter
	var mp *sdkmetric.MeterProvider
	if meter == nil {
		mp, err = newMeterProvider(ctx, cfg, res, o.readers)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, err
		}
		if mp != nil {
			if o.setGlobal {
				otel.SetMeterProvider(mp)
			}
			meter = mp.Meter(instrumentationName)
		} else {
			meter = otel.Meter(instrumentationName)
		}
	}

	o.logger.Info("Telemetry enabled", map[string]interface{}{
		"exporter":         exporterName(cfg.Exporter),
		"protocol":         protocolName(cfg.Protocol),
		"endpoint":         cfg.Endpoint,
		"metrics_endpoint": cfg.MetricsEndpoint,
		"service_name":     serviceName,
		"sample_rate":      cfg.SampleRate,
	})

	return &Provider{
		tracer:        tp.Tracer(instrumentationName),
		metrics:       NewMetricInstruments(meter),
		traceProvider: tp,
		meterProvider: mp,
		logger:        o.logger,
	}, nil
}

// newMeterProvider returns nil when there is nothing to read metrics.
func newMeterProvider(ctx context.Context, cfg core.TelemetryConfig, res *resource.Resource, readers []sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	if cfg.MetricsEndpoint != "" {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.MetricsEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
		}
		interval := cfg.MetricsInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}
	if len(readers) == 0 {
		return nil, nil
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(mpOpts...), nil
}

func protocolName(name string) string {
	switch strings.ToLower(name) {
	case "http", "http/protobuf":
		return "http"
	default:
		return "grpc"
	}
}

func exporterName(name string) string {
	if name == "" {
		return "otlp"
	}
	return strings.ToLower(name)
}

func newExporter(ctx context.Context, cfg core.TelemetryConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	switch exporterName(cfg.Exporter) {
	case "otlp":
		if protocolName(cfg.Protocol) == "http" {
			opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
			if cfg.Insecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
			exporter, err := otlptracehttp.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("failed to create otlp http exporter: %w", err)
			}
			return exporter, nil
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
		return exporter, nil
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	case "none":
		return nil, nil
	default:
		return nil, &core.GuessrError{
			Op:   "telemetry.New",
			Kind: "config",
			Err:  fmt.Errorf("unknown exporter %q: %w", cfg.Exporter, core.ErrInvalidConfiguration),
		}
	}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// StartSpan starts a new telemetry span
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric adds value to the counter called name. Failures are logged
// and otherwise ignored.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	if err := p.metrics.RecordFloatCounter(context.Background(), name, value, metric.WithAttributes(attrs...)); err != nil {
		p.logger.Warn("Failed to record metric", map[string]interface{}{
			"metric": name,
			"error":  err,
		})
	}
}

// Shutdown flushes pending spans and metrics and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.traceProvider.Shutdown(ctx)
	if p.meterProvider != nil {
		err = errors.Join(err, p.meterProvider.Shutdown(ctx))
	}
	return err
}

// otelSpan wraps an OpenTelemetry span to implement core.Span
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}
