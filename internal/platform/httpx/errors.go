// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Stable error codes carried in the envelope.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeValidation      = "VALIDATION_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error is a rejection with an explicit status and code.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthenticated builds a 401 rejection.
func Unauthenticated(code, message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: code, Message: message, Err: ErrUnauthorized}
}

// Forbidden builds a 403 rejection.
func Forbidden(code, message string) *Error {
	return &Error{Status: http.StatusForbidden, Code: code, Message: message, Err: ErrForbidden}
}

// RespondError maps domain errors to the JSON error envelope.
func RespondError(w http.ResponseWriter, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		Fail(w, apiErr.Status, apiErr.Code, apiErr.Error())
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, ErrDuplicate):
		Fail(w, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, ErrForbidden):
		Fail(w, http.StatusForbidden, CodeForbidden, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, CodeUnauthenticated, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
