// Package errors defines custom error types for hidswatch
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// WatchSetupError indicates the watch root could not be subscribed
	WatchSetupError ErrorType = "watch_setup"
	// LogWriteError indicates an alert line could not be appended to the log
	LogWriteError ErrorType = "log_write"
	// ShutdownError indicates watch resources were not released cleanly
	ShutdownError ErrorType = "shutdown"
	// ConfigError indicates configuration issues
	ConfigError ErrorType = "config"
)

// HidsError is the base error type for all hidswatch errors
type HidsError struct {
	Type    ErrorType
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HidsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *HidsError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *HidsError) WithContext(key string, value interface{}) *HidsError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new HidsError
func New(errType ErrorType, message string, err error) *HidsError {
	return &HidsError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the type of the first HidsError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var he *HidsError
	if stderrors.As(err, &he) {
		return he.Type, true
	}
	return "", false
}

func isType(err error, errType ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errType
}

// IsWatchSetupError checks if the error is a watch setup error
func IsWatchSetupError(err error) bool {
	return isType(err, WatchSetupError)
}

// IsLogWriteError checks if the error is a log write error
func IsLogWriteError(err error) bool {
	return isType(err, LogWriteError)
}

// IsShutdownError checks if the error is a shutdown error
func IsShutdownError(err error) bool {
	return isType(err, ShutdownError)
}

// IsConfigError checks if the error is a configuration error
func IsConfigError(err error) bool {
	return isType(err, ConfigError)
}

// Constructor functions for each error type

// NewWatchSetupError creates a new watch setup error
func NewWatchSetupError(message string, err error) *HidsError {
	return New(WatchSetupError, message, err)
}

// NewLogWriteError creates a new log write error
func NewLogWriteError(message string, err error) *HidsError {
	return New(LogWriteError, message, err)
}

// NewShutdownError creates a new shutdown error
func NewShutdownError(message string, err error) *HidsError {
	return New(ShutdownError, message, err)
}

// NewConfigError creates a new configuration error
func NewConfigError(message string, err error) *HidsError {
	return New(ConfigError, message, err)
}
