package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/dittoraid/pkg/raid"
)

// Validate checks the configuration for structural errors.
//
// Struct tags cover the ambient sections. The array section is only checked
// for values that are wrong regardless of the device list; a complete
// array is checked by ArrayConfig.Resolve once command-line arguments have
// been applied.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if cfg.Array.BlockSize != 0 && cfg.Array.BlockSize.Int64() <= 0 {
		return fmt.Errorf("%w: array.block_size %d overflows", raid.ErrConfig, uint64(cfg.Array.BlockSize))
	}
	if len(cfg.Array.Devices) > 0 {
		if _, err := ParseDevices(cfg.Array.Devices); err != nil {
			return err
		}
	}

	return nil
}

// formatValidationErrors joins validator errors into one readable message
// that names the config key and the failing rule.
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s=%s' (value %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", raid.ErrConfig, strings.Join(msgs, "; "))
}
