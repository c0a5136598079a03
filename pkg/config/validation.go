package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validation tags.
//
// Returns an error describing every failed field, or nil if the
// configuration is valid.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		if invalid, ok := err.(*validator.InvalidValidationError); ok {
			return fmt.Errorf("invalid configuration value: %w", invalid)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
