package domain

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes carried in APIError.Code
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrPayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrValidation      = "VALIDATION_ERROR"
	ErrNotFoundCode    = "NOT_FOUND"
	ErrRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrUnavailable     = "SERVICE_UNAVAILABLE"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
)

var codeStatus = map[string]int{
	ErrInvalidInput:    http.StatusBadRequest,
	ErrPayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrValidation:      http.StatusBadRequest,
	ErrNotFoundCode:    http.StatusNotFound,
	ErrRateLimit:       http.StatusTooManyRequests,
	ErrUnavailable:     http.StatusServiceUnavailable,
	ErrInternalServer:  http.StatusInternalServerError,
}

// APIError is the JSON body of every failed REST request
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status is the HTTP status that goes with the code. Unknown codes map to 500.
func (e *APIError) Status() int {
	if status, ok := codeStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewAPIError stamps an APIError with the current UTC time
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError reports one rejected input field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
