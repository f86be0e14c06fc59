// Package wrapper is the host-facing hook surface of dittostream.
//
// A host runtime that dispatches "proto://path" URIs to user-space handlers
// (fopen, stat, rename, opendir and friends) calls these hooks. Each hook
// resolves the protocol through the registry, runs the operation in package
// stream and collapses the outcome into the conventional return value of the
// host function: false, 0, nil or an empty slice on failure. Failures are
// never returned as errors; they are translated into Warnings and handed to
// the configured WarningHandler.
package wrapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/lock"
	"github.com/marmos91/dittostream/pkg/registry"
	"github.com/marmos91/dittostream/pkg/stream"
)

// Options tunes a Wrapper.
type Options struct {
	// Warnings receives translated failures. Default: LogWarnings.
	Warnings WarningHandler

	// Locks relays advisory locks. Default: a relay on lock.DefaultDir().
	Locks *lock.Relay

	// Clock supplies stat access times. Default: time.Now.
	Clock func() time.Time
}

// Wrapper dispatches host hooks to the bindings of a registry.
type Wrapper struct {
	registry *registry.Registry
	warn     WarningHandler
	locks    *lock.Relay
	clock    func() time.Time
}

// New creates a Wrapper over reg.
func New(reg *registry.Registry, opts Options) *Wrapper {
	if opts.Warnings == nil {
		opts.Warnings = LogWarnings
	}
	if opts.Locks == nil {
		opts.Locks = lock.NewRelay("")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Wrapper{
		registry: reg,
		warn:     opts.Warnings,
		locks:    opts.Locks,
		clock:    opts.Clock,
	}
}

// Registry returns the registry the wrapper dispatches to.
func (w *Wrapper) Registry() *registry.Registry {
	return w.registry
}

// ============================================================================
// Registration
// ============================================================================

// Register binds protocol to b. It returns false when the protocol is
// already bound or cannot be registered.
func (w *Wrapper) Register(ctx context.Context, protocol string, b backend.Backend, cfg registry.Config) bool {
	if _, err := w.registry.Register(ctx, protocol, b, cfg); err != nil {
		if !errors.Is(err, registry.ErrAlreadyRegistered) {
			logger.Warn("register %s://: %v", protocol, err)
		}
		return false
	}
	return true
}

// Unregister removes the binding for protocol. It returns false when the
// protocol was not bound. A backend that fails to close is still unbound.
func (w *Wrapper) Unregister(protocol string) bool {
	err := w.registry.Unregister(protocol)
	return !errors.Is(err, registry.ErrNotRegistered)
}

// UnregisterAll removes every binding.
func (w *Wrapper) UnregisterAll() {
	if err := w.registry.UnregisterAll(); err != nil {
		logger.Warn("unregister all: %v", err)
	}
}

// Protocols lists the bound protocols in sorted order.
func (w *Wrapper) Protocols() []string {
	return w.registry.Protocols()
}

// IsRegistered reports whether protocol is bound.
func (w *Wrapper) IsRegistered(protocol string) bool {
	return w.registry.Has(protocol)
}

// ============================================================================
// Dispatch helpers
// ============================================================================

// target is a resolved hook argument.
type target struct {
	fs   *stream.Filesystem
	uri  string
	path string
}

// resolve maps uri onto the Filesystem of its binding. Failures are
// reported under op.
func (w *Wrapper) resolve(op, uri string) (target, bool) {
	protocol, path, err := ParseURI(uri)
	if err != nil {
		w.report(op, err)
		return target{}, false
	}

	binding, err := w.registry.Lookup(protocol)
	if err != nil {
		w.report(op, err, path)
		return target{}, false
	}

	fs := stream.New(binding, stream.Options{Locks: w.locks, Clock: w.clock})
	return target{fs: fs, uri: uri, path: path}, true
}

// report translates err and forwards the warning, if any.
func (w *Wrapper) report(op string, err error, paths ...string) {
	if warning, ok := Translate(op, err, paths...); ok {
		w.warn(warning)
	}
}

// rescue turns a panic escaping a hook into a Generic warning. It must be
// deferred directly by the hook.
func (w *Wrapper) rescue(op string, paths ...string) {
	if r := recover(); r != nil {
		logger.Error("%s: recovered from panic: %v", op, r)
		w.report(op, fmt.Errorf("unexpected failure: %v", r), paths...)
	}
}

// opOf prefers the operation recorded in a stream error, so that a flush
// triggered by fwrite is reported as fflush.
func opOf(err error, fallback string) string {
	var se *stream.Error
	if errors.As(err, &se) && se.Op != "" {
		return se.Op
	}
	return fallback
}
