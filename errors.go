package veloq

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a single-result execution yields no
	// rows.
	ErrNotFound = errors.New("veloq: result not found")

	// ErrInvalidConfig is the sentinel matched by configuration errors:
	// authoring mistakes such as referencing a function the model does
	// not register. These are raised at transform time and never
	// retried.
	ErrInvalidConfig = errors.New("veloq: invalid configuration")
)

// NotFoundError reports an empty result for a single-result execution.
type NotFoundError struct {
	source string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.source != "" {
		return fmt.Sprintf("veloq: %s not found", e.source)
	}
	return "veloq: result not found"
}

// Is reports whether the target matches ErrNotFound.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Source returns the query source the lookup ran against.
func (e *NotFoundError) Source() string { return e.source }

// NewNotFoundError returns a NotFoundError for the given query source.
func NewNotFoundError(source string) *NotFoundError {
	return &NotFoundError{source: source}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConfigError reports a static authoring mistake detected during query
// transformation or compiler construction.
type ConfigError struct {
	Func    string // Function name involved, if any
	Message string
	Cause   error
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	msg := "veloq: configuration error"
	if e.Func != "" {
		msg += fmt.Sprintf(" on function %q", e.Func)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Cause }

// Is reports whether the target matches ErrInvalidConfig.
func (e *ConfigError) Is(err error) bool {
	return err == ErrInvalidConfig
}

// NewConfigError returns a new ConfigError.
func NewConfigError(fn, message string, cause error) *ConfigError {
	return &ConfigError{Func: fn, Message: message, Cause: cause}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidConfig)
}
