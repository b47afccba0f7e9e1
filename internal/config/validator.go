package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harriteja/squeezejpg/internal/logging"
)

// ValidationError describes one invalid configuration field
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() error {
	var errs []error

	if c.Workers < 1 {
		errs = append(errs, ValidationError{"workers", c.Workers, "must be at least 1"})
	}
	if len(c.Input.Extensions) == 0 {
		errs = append(errs, ValidationError{"input.extensions", c.Input.Extensions, "must list at least one extension"})
	}
	if c.Input.ReadConcurrency < 1 {
		errs = append(errs, ValidationError{"input.read_concurrency", c.Input.ReadConcurrency, "must be at least 1"})
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		errs = append(errs, ValidationError{"output.dir", c.Output.Dir, "must not be empty"})
	}
	if strings.ContainsAny(c.Output.Prefix, `/\`) {
		errs = append(errs, ValidationError{"output.prefix", c.Output.Prefix, "must not contain path separators"})
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, ValidationError{"log.level", c.Log.Level, "must be one of DEBUG, INFO, WARN, ERROR"})
	}

	return errors.Join(errs...)
}
