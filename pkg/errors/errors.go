package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/portal-api/internal/timeline"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Field   string      `json:"field,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so callers can compare against the
// predefined values even after Clone or Wrap.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTooManyRequests    = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrSubmissionClosed   = New("SUBMISSION_CLOSED", http.StatusUnprocessableEntity, "submissions are closed")
	ErrMalformedDate      = New("MALFORMED_DATE", http.StatusBadRequest, "malformed date")
	ErrMalformedPattern   = New("MALFORMED_PATTERN", http.StatusBadRequest, "malformed meeting pattern")
	ErrExportsDisabled    = New("EXPORTS_DISABLED", http.StatusServiceUnavailable, "exports are disabled")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var verr *timeline.ValidationError
	if errors.As(err, &verr) {
		return FromValidation(verr)
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// FromValidation converts a rejected timeline record into a 400 naming the
// first offending field. All issues travel in Details.
func FromValidation(verr *timeline.ValidationError) *Error {
	if verr == nil || len(verr.Issues) == 0 {
		return Clone(ErrValidation, "")
	}
	base := ErrMalformedDate
	if verr.Issues[0].Kind == timeline.IssueMalformedPattern {
		base = ErrMalformedPattern
	}
	out := Wrap(verr, base.Code, base.Status, fmt.Sprintf("%s: %s", verr.Issues[0].Field, verr.Issues[0].Reason))
	out.Field = verr.Field()
	out.Details = verr.Issues
	return out
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
