package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// descriptions documents the order engine's instruments in exported metadata.
// Names missing here are still recorded, just without a description.
var descriptions = map[string]string{
	"weekorder.orders.submitted":         "Weekly orders accepted",
	"weekorder.orders.rejected":          "Order submissions rejected, by reason",
	"weekorder.orders.viewed":            "Orders moved from SUBMITTED to VIEWED",
	"weekorder.availability.updated":     "Availability flags written",
	"weekorder.order.submit.duration_ms": "Order submission latency",
}

// MetricInstruments caches counters and histograms by name. Instruments are
// created on first use and reused afterwards.
type MetricInstruments struct {
	meter      metric.Meter
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	mu         sync.RWMutex
}

// NewMetricInstruments creates an instrument cache on meter
func NewMetricInstruments(meter metric.Meter) *MetricInstruments {
	return &MetricInstruments{
		meter:      meter,
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// RecordCounter adds value to the named counter
func (m *MetricInstruments) RecordCounter(ctx context.Context, name string, value float64, opts ...metric.AddOption) error {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = m.counters[name]; !exists {
			var err error
			counter, err = m.meter.Float64Counter(name, metric.WithDescription(descriptions[name]))
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create counter %s: %w", name, err)
			}
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, value, opts...)
	return nil
}

// RecordHistogram records a millisecond latency sample
func (m *MetricInstruments) RecordHistogram(ctx context.Context, name string, value float64, opts ...metric.RecordOption) error {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if histogram, exists = m.histograms[name]; !exists {
			var err error
			histogram, err = m.meter.Float64Histogram(name,
				metric.WithUnit("ms"),
				metric.WithDescription(descriptions[name]),
			)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create histogram %s: %w", name, err)
			}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.Record(ctx, value, opts...)
	return nil
}
