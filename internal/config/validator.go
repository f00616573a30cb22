package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "basetemp.keep")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBaseTemp()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateBaseTemp() []ValidationError {
	var errors []ValidationError

	// The prefix becomes part of a single path component
	prefix := c.BaseTemp.Prefix
	if prefix == "" || filepath.Base(prefix) != prefix || prefix == "." || prefix == ".." {
		errors = append(errors, ValidationError{
			Field:   "basetemp.prefix",
			Value:   prefix,
			Message: "must be a non-empty name without path separators",
		})
	} else if strings.HasPrefix(prefix, "garbage-") {
		errors = append(errors, ValidationError{
			Field:   "basetemp.prefix",
			Value:   prefix,
			Message: "must not start with the reserved \"garbage-\" prefix",
		})
	}

	if c.BaseTemp.Root == "" && c.BaseTemp.Given == "" {
		errors = append(errors, ValidationError{
			Field:   "basetemp.root",
			Value:   c.BaseTemp.Root,
			Message: "must be set when basetemp.given is empty",
		})
	}

	if c.BaseTemp.Keep < 0 {
		errors = append(errors, ValidationError{
			Field:   "basetemp.keep",
			Value:   c.BaseTemp.Keep,
			Message: "must be non-negative",
		})
	}

	d, err := time.ParseDuration(c.BaseTemp.LockTimeout)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   "basetemp.lock_timeout",
			Value:   c.BaseTemp.LockTimeout,
			Message: "must be a duration such as \"72h\" or \"30m\"",
		})
	} else if d <= 0 {
		errors = append(errors, ValidationError{
			Field:   "basetemp.lock_timeout",
			Value:   c.BaseTemp.LockTimeout,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
