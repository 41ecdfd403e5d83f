package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// MetricInstruments holds cached metric instruments for efficient recording
type MetricInstruments struct {
	meter         metric.Meter
	floatCounters map[string]metric.Float64Counter
	mu            sync.RWMutex
}

// NewMetricInstruments creates a new metrics instrument cache on meter
func NewMetricInstruments(meter metric.Meter) *MetricInstruments {
	return &MetricInstruments{
		meter:         meter,
		floatCounters: make(map[string]metric.Float64Counter),
	}
}

// RecordFloatCounter adds value to the counter called name, creating it on first use
func (m *MetricInstruments) RecordFloatCounter(ctx context.Context, name string, value float64, opts ...metric.AddOption) error {
	m.mu.RLock()
	counter, exists := m.floatCounters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = m.floatCounters[name]; !exists {
			var err error
			counter, err = m.meter.Float64Counter(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create counter %s: %w", name, err)
			}
			m.floatCounters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, value, opts...)
	return nil
}

// instrumentCount reports how many instruments have been created.
func (m *MetricInstruments) instrumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.floatCounters)
}
