package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/metrics"
	"github.com/marmos91/dittostream/pkg/registry"
)

func TestInitializeRegistry(t *testing.T) {
	cfg := &Config{Bindings: []BindingConfig{
		{Protocol: "mem", Backend: BackendConfig{Type: "memory"}},
		{
			Protocol:  "disk",
			RateLimit: RateLimitConfig{RequestsPerSecond: 1000},
			Backend: BackendConfig{
				Type:       "filesystem",
				Filesystem: map[string]any{"root": filepath.Join(t.TempDir(), "disk")},
			},
		},
	}}
	ApplyDefaults(cfg)

	reg, err := InitializeRegistry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to initialize registry: %v", err)
	}
	defer func() { _ = reg.UnregisterAll() }()

	if reg.Count() != 2 {
		t.Fatalf("Expected 2 bindings, got %d", reg.Count())
	}

	mem, err := reg.Lookup("mem")
	if err != nil {
		t.Fatalf("Lookup(mem) failed: %v", err)
	}
	if _, ok := mem.Backend.(backend.Wrapper); ok {
		t.Error("Expected mem backend to be unthrottled")
	}

	disk, err := reg.Lookup("disk")
	if err != nil {
		t.Fatalf("Lookup(disk) failed: %v", err)
	}
	if _, ok := disk.Backend.(backend.Wrapper); !ok {
		t.Errorf("Expected disk backend to be throttled, got %T", disk.Backend)
	}
}

func TestInitializeRegistry_FailureUnwinds(t *testing.T) {
	cfg := &Config{Bindings: []BindingConfig{
		{Protocol: "mem", Backend: BackendConfig{Type: "memory"}},
		{Protocol: "broken", Backend: BackendConfig{Type: "postgres"}},
	}}
	ApplyDefaults(cfg)

	reg, err := InitializeRegistry(context.Background(), cfg)
	if err == nil {
		_ = reg.UnregisterAll()
		t.Fatal("Expected error for postgres binding without dsn")
	}
}

func TestInitializeRegistry_DuplicateProtocol(t *testing.T) {
	cfg := &Config{Bindings: []BindingConfig{
		{Protocol: "mem", Backend: BackendConfig{Type: "memory"}},
		{Protocol: "mem", Backend: BackendConfig{Type: "memory"}},
	}}
	ApplyDefaults(cfg)

	_, err := InitializeRegistry(context.Background(), cfg)
	if !errors.Is(err, registry.ErrAlreadyRegistered) {
		t.Fatalf("Expected ErrAlreadyRegistered, got: %v", err)
	}
}

func TestInitializeRegistry_MetricsInstrumentBackends(t *testing.T) {
	cfg := &Config{
		Metrics:  MetricsConfig{Enabled: true},
		Bindings: []BindingConfig{{Protocol: "cfgmetrics", Backend: BackendConfig{Type: "memory"}}},
	}
	ApplyDefaults(cfg)

	reg, err := InitializeRegistry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to initialize registry: %v", err)
	}
	defer func() { _ = reg.UnregisterAll() }()

	binding, err := reg.Lookup("cfgmetrics")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if _, ok := binding.Backend.(backend.Wrapper); !ok {
		t.Errorf("Expected instrumented backend, got %T", binding.Backend)
	}
	if !metrics.IsEnabled() {
		t.Error("Expected the metrics registry to be initialized")
	}
}
