// Package prometheus provides the Prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittostream/pkg/metrics"
)

// backendMetrics is the Prometheus implementation of metrics.BackendMetrics.
type backendMetrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

var (
	// shared is created once per process: collectors can only be registered
	// once, so every binding reports through the same vectors with its
	// protocol as a label.
	shared     *backendMetrics
	sharedOnce sync.Once
)

// NewBackendMetrics returns the Prometheus-backed BackendMetrics.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewBackendMetrics() metrics.BackendMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopBackendMetrics()
	}

	sharedOnce.Do(func() {
		reg := metrics.GetRegistry()

		shared = &backendMetrics{
			callsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "dittostream_backend_calls_total",
					Help: "Total number of backend calls by protocol, operation and status",
				},
				[]string{"protocol", "operation", "status"},
			),
			callDuration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "dittostream_backend_call_duration_seconds",
					Help: "Duration of backend calls in seconds",
					Buckets: []float64{
						0.0001, // 100µs
						0.001,  // 1ms
						0.01,   // 10ms
						0.1,    // 100ms
						1.0,    // 1s
						10.0,   // 10s
					},
				},
				[]string{"protocol", "operation"},
			),
		}
	})
	return shared
}

func (m *backendMetrics) RecordCall(protocol, operation string, duration time.Duration, err error) {
	m.callsTotal.WithLabelValues(protocol, operation, metrics.Status(err)).Inc()
	m.callDuration.WithLabelValues(protocol, operation).Observe(duration.Seconds())
}
