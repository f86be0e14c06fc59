package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// configHeader opens every generated configuration file.
const configHeader = `# DittoStream Configuration File
#
# Environment variables override file values using the DITTOSTREAM_ prefix,
# e.g. DITTOSTREAM_LOGGING_LEVEL=DEBUG.
#
# Permission values are plain integers. YAML reads 0o644 as octal, a bare
# 644 is decimal.
`

// sectionComments documents each top-level key of the generated file.
var sectionComments = []struct {
	key     string
	comment string
}{
	{"logging", "# Logging configuration\n# level: DEBUG, INFO, WARN, ERROR\n# format: text, json\n# output: stdout, stderr, or a file path"},
	{"locking", "# Advisory locking\n# Processes only exclude each other when they share this directory."},
	{"metrics", "# Backend metrics\n# Counts and times every backend call. Print them with dittostream --metrics."},
	{"bindings", "# Protocol bindings\n# Each binding maps a URI scheme (protocol://path) onto a backend.\n# backend.type: memory, filesystem, s3, minio, badger, postgres, mongodb\n# Only the options section matching backend.type is read."},
}

// InitConfig writes a default configuration file to the default location.
//
// Returns the path of the written file. Fails when the file already exists
// unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg section by section, each preceded by
// its comment block.
func generateYAMLWithComments(cfg *Config) (string, error) {
	sections := map[string]any{
		"logging":  cfg.Logging,
		"locking":  cfg.Locking,
		"metrics":  cfg.Metrics,
		"bindings": cfg.Bindings,
	}

	var sb strings.Builder
	sb.WriteString(configHeader)

	for _, section := range sectionComments {
		data, err := yaml.Marshal(map[string]any{section.key: sections[section.key]})
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s section: %w", section.key, err)
		}

		sb.WriteString("\n")
		sb.WriteString(section.comment)
		sb.WriteString("\n")
		sb.Write(data)
	}

	return sb.String(), nil
}
