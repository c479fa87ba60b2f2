package config

import (
	"errors"
	"fmt"
)

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidHost          = errors.New("invalid host")
	ErrDependentField       = errors.New("dependent field")
	ErrInvalidURLScheme     = errors.New("URL scheme must be http or https")
	ErrInvalidValue         = errors.New("invalid value")
)

// ValidationError names the offending option. Err is one of the sentinel
// errors above so callers can use errors.Is.
type ValidationError struct {
	Field string
	Err   error
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func missing(field, group string) error {
	return &ValidationError{
		Field: field,
		Err:   ErrMissingRequiredField,
		Msg:   fmt.Sprintf("%s is required for %q parameters", field, group),
	}
}

func invalid(field, value string, err error) error {
	return &ValidationError{
		Field: field,
		Err:   ErrInvalidValue,
		Msg:   fmt.Sprintf("cannot use %q: %v", value, err),
	}
}
