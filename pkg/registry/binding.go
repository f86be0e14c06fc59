package registry

import (
	"sort"
	"sync"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Permissions maps entry kind and visibility to permission bits.
type Permissions map[backend.Kind]map[string]uint32

// Config carries the per-binding settings used by the stream layer.
type Config struct {
	// Permissions feeds the stat mode bits and the chmod emulation.
	Permissions Permissions

	// PublicMask selects which permission bits make a chmod target public.
	// Nil means 0o044; a zero mask makes every chmod target private.
	PublicMask *uint32

	// Metadata lists the fields stat must produce: any of
	// backend.FieldTimestamp, backend.FieldSize, backend.FieldVisibility.
	Metadata []string

	// WriteBuffer is the default auto-flush threshold for new sessions.
	// Nil disables auto-flushing; zero flushes on every write.
	WriteBuffer *int
}

// DefaultPermissions returns the standard 0644/0600 and 0755/0700 table.
func DefaultPermissions() Permissions {
	return Permissions{
		backend.KindFile: {
			backend.VisibilityPublic:  0o644,
			backend.VisibilityPrivate: 0o600,
		},
		backend.KindDir: {
			backend.VisibilityPublic:  0o755,
			backend.VisibilityPrivate: 0o700,
		},
	}
}

// DefaultConfig returns the configuration used when a binding supplies none.
func DefaultConfig() Config {
	mask := uint32(0o044)
	return Config{
		Permissions: DefaultPermissions(),
		PublicMask:  &mask,
		Metadata:    []string{backend.FieldTimestamp, backend.FieldSize, backend.FieldVisibility},
	}
}

// withDefaults fills every unset field from DefaultConfig. A partially
// specified permission table is merged entry by entry.
func (c Config) withDefaults() Config {
	def := DefaultConfig()

	perms := DefaultPermissions()
	for kind, byVisibility := range c.Permissions {
		if perms[kind] == nil {
			perms[kind] = make(map[string]uint32)
		}
		for visibility, bits := range byVisibility {
			perms[kind][visibility] = bits
		}
	}
	c.Permissions = perms

	if c.PublicMask == nil {
		c.PublicMask = def.PublicMask
	}
	if c.Metadata == nil {
		c.Metadata = def.Metadata
	}
	return c
}

// Permission returns the configured bits for kind and visibility.
func (c Config) Permission(kind backend.Kind, visibility string) (uint32, bool) {
	bits, ok := c.Permissions[kind][visibility]
	return bits, ok
}

// Public reports whether chmod bits perm select public visibility.
func (c Config) Public(perm uint32) bool {
	mask := c.PublicMask
	if mask == nil {
		mask = DefaultConfig().PublicMask
	}
	return perm&*mask != 0
}

// Requires reports whether stat must produce field.
func (c Config) Requires(field string) bool {
	for _, f := range c.Metadata {
		if f == field {
			return true
		}
	}
	return false
}

// Capabilities records which optional metadata fields a binding's backend
// can serve. Fields start enabled; once disabled they stay disabled for the
// lifetime of the binding.
type Capabilities struct {
	mu       sync.RWMutex
	disabled map[string]bool
}

func newCapabilities() *Capabilities {
	return &Capabilities{disabled: make(map[string]bool)}
}

// Supports reports whether field may still be requested from the backend.
func (c *Capabilities) Supports(field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled[field]
}

// Disable permanently stops requests for field.
func (c *Capabilities) Disable(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled[field] = true
}

// Disabled lists the disabled fields in sorted order.
func (c *Capabilities) Disabled() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fields := make([]string, 0, len(c.disabled))
	for f := range c.disabled {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Binding associates a protocol name with a backend and its configuration.
// Bindings are immutable once registered apart from Capabilities.
type Binding struct {
	Protocol     string
	Backend      backend.Backend
	Config       Config
	Capabilities *Capabilities
}
