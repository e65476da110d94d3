package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate = validator.New()

// Validate validates the configuration using struct tags and the rules that
// cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	for name, value := range map[string]string{
		"server.poll_timeout":  cfg.Server.PollTimeout,
		"server.write_timeout": cfg.Server.WriteTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, value)
		}
		if d <= 0 {
			return fmt.Errorf("%s: must be positive", name)
		}
	}

	if cfg.Server.Password != "" && cfg.Server.PasswordHash != "" {
		return errors.New("server: password and password_hash are mutually exclusive")
	}
	if h := cfg.Server.PasswordHash; h != "" && !strings.HasPrefix(h, "$2") {
		return errors.New("server.password_hash: expected a bcrypt hash")
	}

	names := make(map[string]bool)
	for i, preset := range cfg.Channels.Preset {
		if strings.ContainsRune(preset.Name, '\a') {
			return fmt.Errorf("channels.preset[%d]: invalid channel name %q", i, preset.Name)
		}
		if names[preset.Name] {
			return fmt.Errorf("channels.preset[%d]: duplicate channel name %q", i, preset.Name)
		}
		names[preset.Name] = true
	}

	if cfg.Flood.LinesPerSecond > 0 && cfg.Flood.Burst < 1 {
		return errors.New("flood: burst must be at least 1 when lines_per_second is set")
	}

	return nil
}

// formatValidationError reports the first failing field
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
