package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/stackprof/internal/constants"
	"github.com/coral-mesh/stackprof/internal/params"
	"github.com/coral-mesh/stackprof/internal/report"
)

// Validator is the interface for validating configuration.
type Validator interface {
	Validate() error
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

type errorList []ValidationError

func (l *errorList) add(field, format string, args ...any) {
	*l = append(*l, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate validates the whole configuration and reports every problem
// found, not just the first.
func (c *Config) Validate() error {
	var errs errorList

	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			errs.add("logging.level", "unknown level %q", c.Logging.Level)
		}
	}
	switch c.Logging.Format {
	case "", "auto", "pretty", "json":
	default:
		errs.add("logging.format", "must be one of: auto, pretty, json")
	}

	if c.Profiler.Lines < 1 || c.Profiler.Lines > constants.MaxStackLines {
		errs.add("profiler.lines", "must be between 1 and %d", constants.MaxStackLines)
	}
	if c.Profiler.Top < 1 {
		errs.add("profiler.top", "must be positive")
	}
	if c.Profiler.Period <= 0 {
		errs.add("profiler.period", "must be positive")
	}

	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		errs.add("report.format", "must be one of: %s", strings.Join(report.Formats(), ", "))
	}

	if _, err := c.Run.Overrides(); err != nil {
		errs.add("run", "%v", err)
	}

	if c.Storage.Enabled && c.Storage.Path == "" {
		errs.add("storage.path", "path is required when storage is enabled")
	}

	if c.Remote.Timeout <= 0 {
		errs.add("remote.timeout", "must be positive")
	}
	if c.Remote.ProbeRetries < 1 {
		errs.add("remote.probe_retries", "must be at least 1")
	}

	for name, b := range c.Benchmarks {
		if b.Workload == "" {
			errs.add("benchmarks."+name+".workload", "workload is required")
		}
		if _, err := b.Declared(); err != nil {
			errs.add("benchmarks."+name, "%v", err)
		}
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

// validateThreadGroups rejects non-positive ratios early so they surface as
// configuration errors rather than at resolution time.
func validateThreadGroups(groups []int) error {
	for i, g := range groups {
		if g < 1 {
			return fmt.Errorf("thread group %d has non-positive ratio %d: %w", i, g, params.ErrConfig)
		}
	}
	return nil
}
