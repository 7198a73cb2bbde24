// Package domainerrors carries coded errors across layer boundaries.
//
// Services translate store and infrastructure failures into coded errors so the
// transport layer can map them to responses without inspecting messages:
//
//	if errors.Is(err, sentinel.ErrNotFound) {
//		return dErrors.New(dErrors.CodeNotFound, "technician not found")
//	}
//	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load technician")
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// GetCode returns the outermost code in err's chain, or CodeInternal when none is present.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is mirrors errors.Is so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
