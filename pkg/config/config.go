package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/registry"
)

// Config represents the complete dittostream configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOSTREAM_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Backend Configuration Pattern:
// Each backend implementation defines its own configuration type. A binding
// carries one options map per backend type (backend.memory,
// backend.filesystem, ...) and only the map matching backend.type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Locking configures the advisory lock relay
	Locking LockingConfig `mapstructure:"locking" yaml:"locking"`

	// Metrics controls backend call instrumentation
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Bindings maps protocols onto backends
	Bindings []BindingConfig `mapstructure:"bindings" yaml:"bindings" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// LockingConfig configures advisory locking.
type LockingConfig struct {
	// Directory holds the lock files. Processes only exclude each other
	// when they share it.
	Directory string `mapstructure:"directory" yaml:"directory" validate:"required"`
}

// MetricsConfig controls Prometheus collection. There is no endpoint: the
// collected series live in the process registry.
type MetricsConfig struct {
	// Enabled wraps every backend with call counters and latency histograms
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// BindingConfig binds one protocol to a backend.
type BindingConfig struct {
	// Protocol is the URI scheme, e.g. "mem" for mem://path
	Protocol string `mapstructure:"protocol" yaml:"protocol" validate:"required,protocol"`

	// WriteBuffer is the default auto-flush threshold of new sessions.
	// Unset means sessions only flush on explicit flush or close.
	WriteBuffer *int `mapstructure:"write_buffer" yaml:"write_buffer,omitempty" validate:"omitempty,gte=0"`

	// RateLimit throttles backend calls
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Permissions maps kind (file, dir) and visibility (public, private)
	// to permission bits reported by stat
	Permissions map[string]map[string]uint32 `mapstructure:"permissions" yaml:"permissions"`

	// PublicMask selects the chmod bits that make a path public
	PublicMask *uint32 `mapstructure:"public_mask" yaml:"public_mask,omitempty" validate:"omitempty,lte=511"` // 511 = 0777 in decimal

	// Metadata lists the fields stat must resolve
	Metadata []string `mapstructure:"metadata" yaml:"metadata" validate:"dive,oneof=timestamp size visibility"`

	// Backend selects and configures the storage backend
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
}

// RateLimitConfig configures the token bucket in front of a backend.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained call rate. 0 disables throttling.
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the bucket size. 0 means RequestsPerSecond.
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// BackendConfig specifies backend configuration.
//
// The Type field determines which backend implementation is used.
// Only the corresponding type-specific configuration section is used.
type BackendConfig struct {
	// Type specifies which backend implementation to use
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory filesystem s3 minio badger postgres mongodb"`

	Memory     map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty"`
	S3         map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
	MinIO      map[string]any `mapstructure:"minio" yaml:"minio,omitempty"`
	Badger     map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
	Postgres   map[string]any `mapstructure:"postgres" yaml:"postgres,omitempty"`
	MongoDB    map[string]any `mapstructure:"mongodb" yaml:"mongodb,omitempty"`
}

// Options returns the options map of the selected backend type.
func (c *BackendConfig) Options() map[string]any {
	switch c.Type {
	case "memory":
		return c.Memory
	case "filesystem":
		return c.Filesystem
	case "s3":
		return c.S3
	case "minio":
		return c.MinIO
	case "badger":
		return c.Badger
	case "postgres":
		return c.Postgres
	case "mongodb":
		return c.MongoDB
	default:
		return nil
	}
}

// RegistryConfig converts the binding settings into a registry.Config.
func (c *BindingConfig) RegistryConfig() registry.Config {
	cfg := registry.Config{
		PublicMask:  c.PublicMask,
		Metadata:    c.Metadata,
		WriteBuffer: c.WriteBuffer,
	}
	if len(c.Permissions) > 0 {
		cfg.Permissions = make(registry.Permissions, len(c.Permissions))
		for kind, bits := range c.Permissions {
			cfg.Permissions[backend.Kind(kind)] = bits
		}
	}
	return cfg
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DITTOSTREAM_ prefix and underscores,
	// e.g. DITTOSTREAM_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys read through AutomaticEnv must be known to viper for Unmarshal
	// to see them.
	for _, key := range []string{"logging.level", "logging.format", "logging.output", "locking.directory", "metrics.enabled"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	// Default location: $XDG_CONFIG_HOME/dittostream/config.yaml
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittostream")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittostream")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
