package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies the failures this tool can produce. None of them are
// fatal to the host process: invalid payloads and download failures are
// logged and the run continues, a reentrant start is refused without being
// surfaced as a failure.
type ErrorType string

const (
	ErrorTypeInvalidPayload ErrorType = "invalid_payload"
	ErrorTypeDownload       ErrorType = "download"
	ErrorTypeNavigation     ErrorType = "navigation"
	ErrorTypeReentrantStart ErrorType = "reentrant_start"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// ErrAlreadyRunning is returned by the coordinator when a start request
// arrives while a scrape is in progress. Callers treat it as a no-op, not a
// failure.
var ErrAlreadyRunning = &Error{
	Type:    ErrorTypeReentrantStart,
	Message: "a scrape is already running",
}

// Error carries a classified failure with an optional wrapped cause.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a classified error around a cause.
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// TypeOf extracts the ErrorType from err, or ErrorTypeUnknown when err was
// not produced by this package.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsReentrantStart reports whether err is the refused-start signal.
func IsReentrantStart(err error) bool {
	return TypeOf(err) == ErrorTypeReentrantStart
}
