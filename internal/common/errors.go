package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by every handler.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL"
)

// Store-level sentinels. Services translate them into AppErrors.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports invalid input detected before any write.
func Validation(message string, details any) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusUnprocessableEntity, Details: details}
}

// NotFound reports that the named entity does not resolve.
func NotFound(entity string) *AppError {
	return &AppError{Code: CodeNotFound, Message: entity + " not found", HTTPStatus: http.StatusNotFound, Err: ErrNotFound}
}

// Conflict reports a mutation rejected by the entity's current state.
func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict, Err: ErrConflict}
}

// Internal wraps an unexpected failure.
func Internal(op string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "internal error", HTTPStatus: http.StatusInternalServerError, Err: fmt.Errorf("%s: %w", op, err)}
}

// AsAppError extracts an AppError from err if present.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// FromStore maps store sentinels onto typed errors. Unknown errors become internal.
func FromStore(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NotFound(entity)
	case errors.Is(err, ErrConflict):
		return Conflict(entity + " was modified concurrently")
	default:
		return Internal(op, err)
	}
}
