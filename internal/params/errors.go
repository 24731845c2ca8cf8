package params

import (
	"errors"
	"fmt"
)

// ErrConfig is matched by every parameter resolution failure.
var ErrConfig = errors.New("invalid benchmark parameters")

// ConfigError reports a malformed or contradictory parameter.
type ConfigError struct {
	Field   string
	Message string
}

func newConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfig, e.Field, e.Message)
}

// Is makes errors.Is(err, ErrConfig) succeed for any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
