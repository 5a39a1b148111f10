// Package telemetry wires OpenTelemetry tracing and metrics behind core.Telemetry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

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
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/weekorder/weekorder/core"
)

const instrumentationName = "github.com/weekorder/weekorder"

// Provider implements core.Telemetry with OpenTelemetry
type Provider struct {
	tracer        trace.Tracer
	instruments   *MetricInstruments
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider
	logger        core.Logger
}

// NewProvider builds exporters from cfg and installs the global tracer and
// meter providers plus the W3C trace-context propagator.
func NewProvider(ctx context.Context, cfg core.TelemetryConfig, version string, logger core.Logger) (*Provider, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	if cfg.TracingEnabled {
		exporter, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.MetricsEnabled && cfg.Exporter != core.ExporterStdout {
		exporter, err := otlpmetrichttp.New(ctx, metricExporterOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	p := newProvider(traceOpts, meterOpts, logger)

	otel.SetTracerProvider(p.traceProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry initialized", map[string]interface{}{
		"exporter": cfg.Exporter,
		"endpoint": cfg.Endpoint,
		"tracing":  cfg.TracingEnabled,
		"metrics":  cfg.MetricsEnabled,
	})

	return p, nil
}

func newProvider(traceOpts []sdktrace.TracerProviderOption, meterOpts []sdkmetric.Option, logger core.Logger) *Provider {
	tp := sdktrace.NewTracerProvider(traceOpts...)
	mp := sdkmetric.NewMeterProvider(meterOpts...)
	return &Provider{
		tracer:        tp.Tracer(instrumentationName),
		instruments:   NewMetricInstruments(mp.Meter(instrumentationName)),
		traceProvider: tp,
		meterProvider: mp,
		logger:        logger,
	}
}

func newSpanExporter(ctx context.Context, cfg core.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case core.ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case core.ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(hostPort(cfg.Endpoint))}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case core.ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(hostPort(cfg.Endpoint))}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported exporter %q: %w", cfg.Exporter, core.ErrInvalidConfiguration)
	}
}

func metricExporterOptions(cfg core.TelemetryConfig) []otlpmetrichttp.Option {
	endpoint := hostPort(cfg.Endpoint)
	// OTLP/gRPC collectors listen on 4317; their HTTP receiver is on 4318
	if cfg.Exporter == core.ExporterOTLPGRPC && strings.HasSuffix(endpoint, ":4317") {
		endpoint = strings.TrimSuffix(endpoint, ":4317") + ":4318"
	}
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}

// hostPort strips a URL scheme; the OTLP WithEndpoint options expect host:port.
func hostPort(endpoint string) string {
	if i := strings.Index(endpoint, "://"); i >= 0 {
		endpoint = endpoint[i+3:]
	}
	return strings.TrimSuffix(endpoint, "/")
}

// StartSpan starts a new telemetry span
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric records name as a histogram when it ends in "_ms", otherwise as a counter.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	ctx := context.Background()
	attrs := labelsToAttributes(labels)

	var err error
	if strings.HasSuffix(name, "_ms") {
		err = p.instruments.RecordHistogram(ctx, name, value, metric.WithAttributes(attrs...))
	} else {
		err = p.instruments.RecordCounter(ctx, name, value, metric.WithAttributes(attrs...))
	}
	if err != nil {
		p.logger.Warn("Failed to record metric", map[string]interface{}{
			"metric": name,
			"error":  err,
		})
	}
}

// Shutdown flushes and stops both providers
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.traceProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
	)
}

func labelsToAttributes(labels map[string]string) []attribute.KeyValue {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, labels[k]))
	}
	return attrs
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
	case uint:
		s.span.SetAttributes(attribute.Int64(key, int64(v)))
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
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}
