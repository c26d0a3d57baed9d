// Package apierrors defines the typed error surface the server exposes to
// clients.
package apierrors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode enumerates the error kinds the server surfaces verbatim to
// the client.
type ErrorCode string

const (
	ErrUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrConfigConflict    ErrorCode = "CONFIG_CONFLICT"
	ErrDuplicateExternal ErrorCode = "DUPLICATE_EXTERNAL_ID"
	ErrQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"
	ErrCorruptCiphertext ErrorCode = "CORRUPT_CIPHERTEXT"
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrInternal          ErrorCode = "INTERNAL"
	ErrValidation        ErrorCode = "VALIDATION_ERROR"
)

// httpStatus maps each error code to its HTTP status.
var httpStatus = map[ErrorCode]int{
	ErrUnauthenticated:   http.StatusUnauthorized,
	ErrNotFound:          http.StatusNotFound,
	ErrConfigConflict:    http.StatusConflict,
	ErrDuplicateExternal: http.StatusConflict,
	ErrQuotaExceeded:     http.StatusRequestEntityTooLarge,
	ErrCorruptCiphertext: http.StatusBadRequest,
	ErrTimeout:           http.StatusGatewayTimeout,
	ErrInternal:          http.StatusInternalServerError,
	ErrValidation:        http.StatusBadRequest,
}

// APIError is the JSON shape returned for every non-2xx response.
type APIError struct {
	Code      string    `json:"error"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an APIError for code with message and optional details.
func New(code ErrorCode, message string, details any) *APIError {
	return &APIError{
		Code:      string(code),
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// WithRequestID attaches a request ID for correlation with server logs.
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// HTTPStatus returns the HTTP status code for an ErrorCode, defaulting to
// 500 for unrecognized codes.
func HTTPStatus(code ErrorCode) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
