package common

import (
	"errors"
	"net/http"
)

// Error codes returned in ErrorBody.Code.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeIdempotentReplay    = "IDEMPOTENT_REPLAY"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia    = "UNSUPPORTED_MEDIA_TYPE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeSessionBusy         = "SESSION_BUSY"
	CodeSourceUnavailable   = "SOURCE_UNAVAILABLE"
	CodeSubmissionsDisabled = "SUBMISSIONS_DISABLED"
	CodeInternal            = "INTERNAL"
)

var codeStatus = map[string]int{
	CodeInvalidRequest:      http.StatusBadRequest,
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeNotFound:            http.StatusNotFound,
	CodeConstraintViolation: http.StatusConflict,
	CodeIdempotentReplay:    http.StatusConflict,
	CodePayloadTooLarge:     http.StatusRequestEntityTooLarge,
	CodeUnsupportedMedia:    http.StatusUnsupportedMediaType,
	CodeRateLimited:         http.StatusTooManyRequests,
	CodeSessionBusy:         http.StatusServiceUnavailable,
	CodeSourceUnavailable:   http.StatusServiceUnavailable,
	CodeSubmissionsDisabled: http.StatusServiceUnavailable,
	CodeInternal:            http.StatusInternalServerError,
}

// StatusFor returns the HTTP status paired with code, 500 when unknown.
func StatusFor(code string) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// AppError is an error that already knows how it should be rendered.
type AppError struct {
	Code    string
	Message string
	Details any
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Status is the HTTP status for the error's code.
func (e *AppError) Status() int { return StatusFor(e.Code) }

// NewAppError wraps err under code.
func NewAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// AsAppError extracts the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
