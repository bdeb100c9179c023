package loadtest

import (
	"errors"
	"fmt"
)

// ErrorCode allows us to encapsulate specific failure codes for the load
// testing process.
type ErrorCode int

// Error codes for load testing-related errors.
const (
	NoError ErrorCode = iota
	ErrFailedToDecodeConfig
	ErrFailedToReadConfigFile
	ErrInvalidConfig
	ErrConnectionFailed
	ErrTransportFailed
	ErrStatsOutputFailed
	ErrMetricsServerFailed
	ErrKilled
)

// Error is a way of wrapping the meaningful error code we want to provide on
// failure.
type Error struct {
	Code     ErrorCode
	Message  string
	Upstream error
}

var _ error = (*Error)(nil)

// NewError allows us to create new Error structures from the given code and
// upstream error (can be nil).
func NewError(code ErrorCode, upstream error, additionalInfo ...string) *Error {
	return &Error{
		Code:     code,
		Message:  ErrorMessageForCode(code, additionalInfo...),
		Upstream: upstream,
	}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Upstream != nil {
		return fmt.Sprintf("%s. Caused by: %s", e.Message, e.Upstream.Error())
	}
	return e.Message
}

// Unwrap exposes the upstream error to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Upstream
}

// ErrorMessageForCode translates the given error code into a human-readable,
// English message.
func ErrorMessageForCode(code ErrorCode, additionalInfo ...string) string {
	var result string
	switch code {
	case NoError:
		result = "No error"
	case ErrFailedToDecodeConfig:
		result = "Failed to decode YAML configuration"
	case ErrFailedToReadConfigFile:
		result = "Failed to read configuration file"
	case ErrInvalidConfig:
		result = "Invalid configuration"
	case ErrConnectionFailed:
		result = "Failed to connect to broker"
	case ErrTransportFailed:
		result = "Failed to send"
	case ErrStatsOutputFailed:
		result = "Failed to write statistics output file"
	case ErrMetricsServerFailed:
		result = "Failed to start metrics server"
	case ErrKilled:
		result = "Process killed"
	default:
		return "Unrecognized error"
	}
	if len(additionalInfo) > 0 {
		result = fmt.Sprintf("%s: %s", result, additionalInfo[0])
	}
	return result
}

// IsErrorCode checks whether the given error, or any error it wraps, is an
// Error with the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsConfigurationError reports whether the given error was caused by invalid
// or unreadable configuration.
func IsConfigurationError(err error) bool {
	return IsErrorCode(err, ErrInvalidConfig) ||
		IsErrorCode(err, ErrFailedToReadConfigFile) ||
		IsErrorCode(err, ErrFailedToDecodeConfig)
}
