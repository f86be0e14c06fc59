// Package metrics counts and times backend calls with Prometheus.
//
// Collection is off until InitRegistry runs. Until then constructors hand
// out no-op recorders and Instrument leaves backends untouched, so bindings
// pay nothing for it. No HTTP endpoint is served: hosts read the series from
// GetRegistry and the CLI prints them with WriteSummary.
//
//	metrics.InitRegistry()
//	b = metrics.Instrument("mem", b, prometheus.NewBackendMetrics())
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is written once by InitRegistry and only read afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry. Later calls do nothing.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the process-wide registry, or nil while collection
// is off.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}
