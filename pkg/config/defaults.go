package config

import (
	"strings"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/lock"
	"github.com/marmos91/dittostream/pkg/registry"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced. Explicitly configured values are kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyLockingDefaults(&cfg.Locking)

	if len(cfg.Bindings) == 0 {
		cfg.Bindings = []BindingConfig{{
			Protocol: "mem",
			Backend:  BackendConfig{Type: "memory"},
		}}
	}

	for i := range cfg.Bindings {
		applyBindingDefaults(&cfg.Bindings[i])
	}
}

// applyLoggingDefaults sets logging defaults.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	} else {
		cfg.Level = strings.ToUpper(cfg.Level)
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyLockingDefaults sets the lock relay directory.
func applyLockingDefaults(cfg *LockingConfig) {
	if cfg.Directory == "" {
		cfg.Directory = lock.DefaultDir()
	}
}

// applyBindingDefaults fills the stat settings of a binding. Only a nil
// metadata list is defaulted, an explicit empty list means stat requires
// no optional field.
func applyBindingDefaults(cfg *BindingConfig) {
	def := registry.DefaultConfig()

	if cfg.PublicMask == nil {
		mask := *def.PublicMask
		cfg.PublicMask = &mask
	}
	if cfg.Metadata == nil {
		cfg.Metadata = append([]string(nil), def.Metadata...)
	}

	if cfg.Permissions == nil {
		cfg.Permissions = make(map[string]map[string]uint32)
	}
	for kind, byVisibility := range def.Permissions {
		key := string(kind)
		if cfg.Permissions[key] == nil {
			cfg.Permissions[key] = make(map[string]uint32)
		}
		for visibility, bits := range byVisibility {
			if _, ok := cfg.Permissions[key][visibility]; !ok {
				cfg.Permissions[key][visibility] = bits
			}
		}
	}

	applyBackendDefaults(&cfg.Backend)
}

// applyBackendDefaults fills type-specific options that have a sensible
// default. Options without one are left for the factory to reject.
func applyBackendDefaults(cfg *BackendConfig) {
	switch cfg.Type {
	case "memory":
		if cfg.Memory == nil {
			cfg.Memory = map[string]any{}
		}
		if _, ok := cfg.Memory["default_visibility"]; !ok {
			cfg.Memory["default_visibility"] = backend.VisibilityPublic
		}
	case "badger":
		if cfg.Badger == nil {
			cfg.Badger = map[string]any{}
		}
		if _, ok := cfg.Badger["path"]; !ok {
			if inMemory, _ := cfg.Badger["in_memory"].(bool); !inMemory {
				cfg.Badger["path"] = "/tmp/dittostream-badger"
			}
		}
	case "s3":
		if cfg.S3 == nil {
			cfg.S3 = map[string]any{}
		}
		if _, ok := cfg.S3["region"]; !ok {
			cfg.S3["region"] = "us-east-1"
		}
	case "postgres":
		if cfg.Postgres == nil {
			cfg.Postgres = map[string]any{}
		}
		if _, ok := cfg.Postgres["table"]; !ok {
			cfg.Postgres["table"] = "dittostream_entries"
		}
	case "mongodb":
		if cfg.MongoDB == nil {
			cfg.MongoDB = map[string]any{}
		}
		if _, ok := cfg.MongoDB["database"]; !ok {
			cfg.MongoDB["database"] = "dittostream"
		}
		if _, ok := cfg.MongoDB["collection"]; !ok {
			cfg.MongoDB["collection"] = "entries"
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
