package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct tags (required, oneof, min/max, gte/lte) are checked first via
// go-playground/validator; cross-field rules the tag language cannot
// express are checked afterwards.
//
// Validate does not mutate the configuration. Normalization (for example
// uppercasing the log level) happens in ApplyDefaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Telemetry needs a collector endpoint when enabled
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry is enabled but no endpoint is configured")
	}

	// The journal section validates its own backend-specific fields
	if cfg.Journal.Enabled {
		if err := cfg.Journal.Validate(); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	return nil
}

// formatValidationErrors turns validator errors into one readable message.
// Each entry names the offending field path and the failed rule, e.g.
// "Config.Logging.Level: failed 'oneof' validation (value: TRACE)".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s=%s' validation (value: %v)",
				fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s' validation (value: %v)",
				fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
