package core

import "github.com/pkg/errors"

// FieldError ties a validation failure to the struct field that caused it.
type FieldError struct {
	Field string
	Error string
}

// ValidationError wraps the top-level error of a rejected payload together
// with its per-field breakdown. The API layer renders it as a 400.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown marks an error the server cannot recover from. Handlers return
// it to ask the app to terminate gracefully.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string { return s.message }

// IsShutdown reports whether err, once unwrapped, asks for termination.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
