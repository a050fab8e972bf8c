// Package errors defines the structured error envelope rendered by the
// HTTP API and helpers mapping domain failures onto it.
package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the JSON error envelope returned by every failing
// endpoint.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates an APIError.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewWithDetails creates an APIError carrying extra detail payload.
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidRequest    = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed  = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrOperationNotFound = New(http.StatusNotFound, "OPERATION_NOT_FOUND", "Operation not found")
	ErrNumericDegeneracy = New(http.StatusUnprocessableEntity, "NUMERIC_DEGENERACY", "Inputs produce a degenerate simulation")
	ErrSimulationFailed  = New(http.StatusInternalServerError, "SIMULATION_FAILED", "Simulation execution failed")
	ErrInternalServer    = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// InvalidRequestWithError wraps a decoding failure in the standard
// envelope.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ValidationFailedWithDetails carries field-level validation failures.
func ValidationFailedWithDetails(details interface{}) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", details)
}

// NumericDegeneracyWithError reports inputs the simulator rejected as
// numerically degenerate.
func NumericDegeneracyWithError(err error) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, "NUMERIC_DEGENERACY", "Inputs produce a degenerate simulation", err.Error())
}
