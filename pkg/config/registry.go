package config

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/internal/ratelimiter"
	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/metrics"
	prommetrics "github.com/marmos91/dittostream/pkg/metrics/prometheus"
	"github.com/marmos91/dittostream/pkg/registry"
)

// InitializeRegistry creates a registry and binds every configured protocol.
//
// For each binding it:
//  1. Creates the backend from its type-specific options
//  2. Instruments it when metrics are enabled
//  3. Wraps it with a rate limiter when rate_limit is configured
//  4. Registers it, which runs capability negotiation
//
// On failure every binding registered so far is closed and unregistered.
func InitializeRegistry(ctx context.Context, cfg *Config) (*registry.Registry, error) {
	reg := registry.New()

	var backendMetrics metrics.BackendMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		backendMetrics = prommetrics.NewBackendMetrics()
	}

	for i := range cfg.Bindings {
		binding := &cfg.Bindings[i]

		b, err := CreateBackend(ctx, &binding.Backend)
		if err != nil {
			_ = reg.UnregisterAll()
			return nil, fmt.Errorf("binding %q: %w", binding.Protocol, err)
		}

		// Instrumented below the limiter so latency excludes throttling waits
		b = metrics.Instrument(binding.Protocol, b, backendMetrics)

		if binding.RateLimit.RequestsPerSecond > 0 {
			limiter := ratelimiter.New(binding.RateLimit.RequestsPerSecond, binding.RateLimit.Burst)
			b = backend.Throttle(b, limiter)
			logger.Debug("binding %s: throttled to %d req/s (burst %d)",
				binding.Protocol, binding.RateLimit.RequestsPerSecond, limiter.Burst())
		}

		if _, err := reg.Register(ctx, binding.Protocol, b, binding.RegistryConfig()); err != nil {
			if closer, ok := b.(io.Closer); ok {
				_ = closer.Close()
			}
			_ = reg.UnregisterAll()
			return nil, fmt.Errorf("binding %q: %w", binding.Protocol, err)
		}
	}

	return reg, nil
}
