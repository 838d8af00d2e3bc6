package timeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies an error category. Each producing package declares
// its own constants in a disjoint range (exposure E1xx, intersection E2xx,
// event splitting E3xx, storage E4xx, protocol E5xx).
type ErrorCode string

// ConfigError reports an invalid specification. Configuration is checked in
// full before any row is processed; a run that begins has a valid spec.
type ConfigError struct {
	Code    ErrorCode `json:"code"`
	Field   string    `json:"field"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ConfigErrors aggregates every configuration problem found, not just the
// first. Validators collect all errors so a caller can fix a spec in one
// round trip.
type ConfigErrors []ConfigError

// Error implements the error interface.
func (e ConfigErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, ce := range e {
		msgs[i] = ce.Error()
	}
	return fmt.Sprintf("%d configuration errors: %s", len(e), strings.Join(msgs, "; "))
}

// OrNil returns the collection as an error, or nil when empty.
func (e ConfigErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// DataError reports malformed input data (windows, episodes, events, or
// tables). The offending subject is identified when known.
type DataError struct {
	Code    ErrorCode `json:"code"`
	Subject string    `json:"subject,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *DataError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("[%s] subject %s: %s", e.Code, e.Subject, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsConfigError reports whether err is or wraps a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce ConfigError
	if errors.As(err, &ce) {
		return true
	}
	var ces ConfigErrors
	return errors.As(err, &ces)
}

// IsDataError reports whether err is or wraps a data error.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// NewDataError creates a DataError for a subject.
func NewDataError(code ErrorCode, subject, format string, args ...any) *DataError {
	return &DataError{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}
