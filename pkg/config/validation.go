package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/registry"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("protocol", func(fl validator.FieldLevel) bool {
		return registry.ValidProtocol(fl.Field().String())
	})
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Bindings) == 0 {
		return fmt.Errorf("bindings: at least one binding must be configured")
	}

	protocols := make(map[string]bool)
	for i, binding := range cfg.Bindings {
		if protocols[binding.Protocol] {
			return fmt.Errorf("bindings[%d]: duplicate protocol %q", i, binding.Protocol)
		}
		protocols[binding.Protocol] = true

		if err := validatePermissions(binding.Permissions); err != nil {
			return fmt.Errorf("bindings[%d].permissions: %w", i, err)
		}

		if binding.RateLimit.Burst > 0 && binding.RateLimit.RequestsPerSecond == 0 {
			return fmt.Errorf("bindings[%d].rate_limit: burst set without requests_per_second", i)
		}
	}

	return nil
}

// validatePermissions checks the kind and visibility keys of a permission
// table and that every entry fits in the rwx bits.
func validatePermissions(perms map[string]map[string]uint32) error {
	for kind, byVisibility := range perms {
		if kind != string(backend.KindFile) && kind != string(backend.KindDir) {
			return fmt.Errorf("unknown kind %q (want %s or %s)", kind, backend.KindFile, backend.KindDir)
		}
		for visibility, bits := range byVisibility {
			if visibility != backend.VisibilityPublic && visibility != backend.VisibilityPrivate {
				return fmt.Errorf("%s: unknown visibility %q", kind, visibility)
			}
			if bits > 0o777 {
				return fmt.Errorf("%s.%s: permission %o out of range", kind, visibility, bits)
			}
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
