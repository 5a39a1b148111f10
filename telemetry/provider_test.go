package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/weekorder/weekorder/core"
)

func newTestProvider(t *testing.T) (*Provider, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()

	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	p := newProvider(
		[]sdktrace.TracerProviderOption{sdktrace.WithSyncer(spans)},
		[]sdkmetric.Option{sdkmetric.WithReader(reader)},
		&core.NoOpLogger{},
	)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, spans, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestProvider_StartSpan(t *testing.T) {
	p, spans, _ := newTestProvider(t)

	_, span := p.StartSpan(context.Background(), "ordering.SubmitOrder")
	span.SetAttribute("store_id", uint(4))
	span.SetAttribute("items", 2)
	span.SetAttribute("week", "2024-03-04")
	span.RecordError(errors.New("duplicate"))
	span.End()

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "ordering.SubmitOrder", got[0].Name)
	assert.Contains(t, got[0].Attributes, attribute.Int64("store_id", 4))
	assert.Contains(t, got[0].Attributes, attribute.Int("items", 2))
	assert.Contains(t, got[0].Attributes, attribute.String("week", "2024-03-04"))
	assert.Len(t, got[0].Events, 1)
}

func TestProvider_RecordMetric(t *testing.T) {
	p, _, reader := newTestProvider(t)

	p.RecordMetric("weekorder.orders.submitted", 1, nil)
	p.RecordMetric("weekorder.orders.submitted", 1, nil)
	p.RecordMetric("weekorder.orders.rejected", 1, map[string]string{"reason": "duplicate"})
	p.RecordMetric("weekorder.order.submit.duration_ms", 12.5, nil)

	metrics := collect(t, reader)

	submitted, ok := metrics["weekorder.orders.submitted"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, submitted.DataPoints, 1)
	assert.Equal(t, float64(2), submitted.DataPoints[0].Value)

	rejected, ok := metrics["weekorder.orders.rejected"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	reason, _ := rejected.DataPoints[0].Attributes.Value("reason")
	assert.Equal(t, "duplicate", reason.AsString())

	duration, ok := metrics["weekorder.order.submit.duration_ms"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)
}

func TestNewProvider_Stdout(t *testing.T) {
	p, err := NewProvider(context.Background(), core.TelemetryConfig{
		Enabled:        true,
		Exporter:       core.ExporterStdout,
		ServiceName:    "weekorder-test",
		TracingEnabled: true,
		MetricsEnabled: true,
		SamplingRate:   1,
	}, "test", nil)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), core.TelemetryConfig{
		Exporter:       "zipkin",
		TracingEnabled: true,
	}, "test", nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "collector:4318", hostPort("http://collector:4318/"))
	assert.Equal(t, "collector:4317", hostPort("collector:4317"))

	opts := metricExporterOptions(core.TelemetryConfig{Exporter: core.ExporterOTLPGRPC, Endpoint: "otel:4317"})
	assert.Len(t, opts, 1)
}

func TestTracingMiddleware(t *testing.T) {
	handler := TracingMiddleware("weekorder", "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, path := range []string{"/health", "/api/store/products"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}
}
