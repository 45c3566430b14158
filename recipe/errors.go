package recipe

import (
	"errors"
	"fmt"
)

// InvalidConfigurationError is returned by Validate hooks when the
// requested settings or options cannot be built.
type InvalidConfigurationError struct {
	Msg string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Msg
}

// InvalidConfiguration formats an *InvalidConfigurationError.
func InvalidConfiguration(format string, args ...any) error {
	return &InvalidConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IsInvalidConfiguration reports whether err wraps an
// *InvalidConfigurationError.
func IsInvalidConfiguration(err error) bool {
	var target *InvalidConfigurationError
	return errors.As(err, &target)
}
