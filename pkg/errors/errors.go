package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
// Fields carries per-field messages for validation failures, keyed by the form's json field name.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code so that cloned or wrapped copies of a predefined error still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
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
	ErrNotFound              = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden             = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized          = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrSessionExpired        = New("SESSION_EXPIRED", http.StatusUnauthorized, "session expired, please sign in again")
	ErrConflict              = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation            = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal              = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrUpstream              = New("UPSTREAM_UNAVAILABLE", http.StatusBadGateway, "ims backend unavailable")
	ErrCacheMiss             = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrNotConvertible        = New("ENQUIRY_NOT_CONVERTIBLE", http.StatusConflict, "enquiry cannot be converted")
	ErrConversionExpired     = New("CONVERSION_EXPIRED", http.StatusConflict, "conversion expired, stage the enquiry again")
	ErrInvalidTransition     = New("INVALID_STATUS_TRANSITION", http.StatusConflict, "status transition not allowed")
	ErrAdmissionCreateFailed = New("ADMISSION_CREATE_FAILED", http.StatusBadGateway, "failed to create admission")
	ErrAmbiguousVocabulary   = New("AMBIGUOUS_VOCABULARY", http.StatusConflict, "label matches more than one entry")
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
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
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
	if err.Fields != nil {
		clone.Fields = make(map[string]string, len(err.Fields))
		for k, v := range err.Fields {
			clone.Fields[k] = v
		}
	}
	return &clone
}

// WithFields returns a copy of err carrying the given field messages merged over any existing ones.
func WithFields(err *Error, fields map[string]string) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if len(fields) == 0 {
		return clone
	}
	if clone.Fields == nil {
		clone.Fields = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		clone.Fields[k] = v
	}
	return clone
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	return errors.Is(err, target)
}
