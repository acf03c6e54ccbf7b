package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeInternal        Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeInvalidArgument: http.StatusBadRequest,
	CodeUnauthenticated: http.StatusUnauthorized,
	CodeForbidden:       http.StatusForbidden,
	CodeNotFound:        http.StatusNotFound,
	CodeConflict:        http.StatusConflict,
	CodeRateLimited:     http.StatusTooManyRequests,
	CodeUnavailable:     http.StatusServiceUnavailable,
	CodeInternal:        http.StatusInternalServerError,
}

// AppError is the typed result every chat operation fails with.
// Details are merged into the JSON error body (e.g. the existing
// connection status on a Conflict).
type AppError struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// With returns a copy of e carrying an extra detail field.
func (e *AppError) With(key string, value interface{}) *AppError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// HTTPStatus is the status code a REST handler answers with.
func (e *AppError) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArgument(msg string) *AppError { return New(CodeInvalidArgument, msg) }
func Unauthenticated(msg string) *AppError { return New(CodeUnauthenticated, msg) }
func Forbidden(msg string) *AppError       { return New(CodeForbidden, msg) }
func NotFound(msg string) *AppError        { return New(CodeNotFound, msg) }
func Conflict(msg string) *AppError        { return New(CodeConflict, msg) }
func RateLimited(msg string) *AppError     { return New(CodeRateLimited, msg) }

func Internal(msg string, cause error) *AppError {
	return Wrap(CodeInternal, msg, cause)
}

func Unavailable(msg string, cause error) *AppError {
	return Wrap(CodeUnavailable, msg, cause)
}

// CodeOf extracts the code of an AppError anywhere in err's chain.
// Untyped errors are reported as INTERNAL.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// From converts any error into an *AppError, hiding the message of
// untyped errors behind a generic one.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}
