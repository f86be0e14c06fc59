package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"sync"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/backend"
)

var (
	// ErrAlreadyRegistered is returned when a protocol is already bound.
	ErrAlreadyRegistered = errors.New("protocol already registered")

	// ErrNotRegistered is returned when no binding exists for a protocol.
	ErrNotRegistered = errors.New("protocol not registered")
)

// protocolPattern is the URI scheme grammar.
var protocolPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*$`)

// ValidProtocol reports whether name is usable as a URI scheme.
func ValidProtocol(name string) bool {
	return protocolPattern.MatchString(name)
}

// Registry owns every binding of the process. It replaces ambient global
// state: callers create one at startup and close it at shutdown.
//
// Example usage:
//
//	reg := registry.New()
//	_, err := reg.Register(ctx, "mem", memory.New(memory.Config{}), registry.Config{})
//	binding, _ := reg.Lookup("mem")
//	defer reg.UnregisterAll()
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{bindings: make(map[string]*Binding)}
}

// Register binds protocol to b. Missing configuration falls back to
// DefaultConfig. Capability negotiation runs once here: a backend that
// reports its capabilities is trusted, otherwise each optional field is
// probed against the root and disabled on backend.ErrNotSupported.
func (r *Registry) Register(ctx context.Context, protocol string, b backend.Backend, cfg Config) (*Binding, error) {
	if b == nil {
		return nil, fmt.Errorf("cannot register nil backend for %q", protocol)
	}
	if !ValidProtocol(protocol) {
		return nil, fmt.Errorf("invalid protocol name %q", protocol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[protocol]; exists {
		return nil, fmt.Errorf("%q: %w", protocol, ErrAlreadyRegistered)
	}

	binding := &Binding{
		Protocol:     protocol,
		Backend:      b,
		Config:       cfg.withDefaults(),
		Capabilities: negotiate(ctx, b),
	}
	r.bindings[protocol] = binding

	logger.Info("registered protocol %s:// (unsupported metadata: %v)", protocol, binding.Capabilities.Disabled())
	return binding, nil
}

// negotiate determines which optional metadata fields b serves.
func negotiate(ctx context.Context, b backend.Backend) *Capabilities {
	caps := newCapabilities()

	if reported, ok := backend.ReportedCapabilities(b); ok {
		for _, field := range reported.Unsupported {
			caps.Disable(field)
		}
		return caps
	}

	probes := map[string]func() error{
		backend.FieldSize: func() error {
			_, err := b.GetSize(ctx, "")
			return err
		},
		backend.FieldTimestamp: func() error {
			_, err := b.GetTimestamp(ctx, "")
			return err
		},
		backend.FieldVisibility: func() error {
			_, err := b.GetVisibility(ctx, "")
			return err
		},
	}
	for field, probe := range probes {
		if err := probe(); errors.Is(err, backend.ErrNotSupported) {
			logger.Debug("backend does not support %s metadata", field)
			caps.Disable(field)
		}
	}
	return caps
}

// Unregister removes the binding for protocol and closes its backend when
// the backend implements io.Closer. The binding is removed even if closing
// fails.
func (r *Registry) Unregister(protocol string) error {
	r.mu.Lock()
	binding, exists := r.bindings[protocol]
	delete(r.bindings, protocol)
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%q: %w", protocol, ErrNotRegistered)
	}

	logger.Info("unregistered protocol %s://", protocol)
	return closeBackend(binding)
}

// UnregisterAll removes every binding, returning the joined close errors.
func (r *Registry) UnregisterAll() error {
	r.mu.Lock()
	bindings := r.bindings
	r.bindings = make(map[string]*Binding)
	r.mu.Unlock()

	var errs []error
	for _, binding := range bindings {
		if err := closeBackend(binding); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeBackend(binding *Binding) error {
	closer, ok := binding.Backend.(io.Closer)
	if !ok {
		return nil
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close backend for %s://: %v", binding.Protocol, err)
		return fmt.Errorf("close %s backend: %w", binding.Protocol, err)
	}
	return nil
}

// Lookup returns the binding for protocol.
func (r *Registry) Lookup(protocol string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, exists := r.bindings[protocol]
	if !exists {
		return nil, fmt.Errorf("%q: %w", protocol, ErrNotRegistered)
	}
	return binding, nil
}

// Has reports whether protocol is bound.
func (r *Registry) Has(protocol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.bindings[protocol]
	return exists
}

// Protocols returns the bound protocol names in sorted order.
func (r *Registry) Protocols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of bindings.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
