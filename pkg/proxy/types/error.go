package types

import (
	"net/http"
	"time"
)

// ErrorResponse represents an OpenAI-compatible error response.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`

	// Status overrides the status derived from the error type when set.
	Status int `json:"-"`

	// RetryAfter is sent as the Retry-After header when positive.
	RetryAfter time.Duration `json:"-"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error (if applicable).
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error type constants matching OpenAI API specification.
const (
	// ErrorTypeInvalidRequest indicates a client-side error (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeAuthentication indicates an authentication failure (401).
	ErrorTypeAuthentication = "authentication_error"

	// ErrorTypeNotFound indicates a resource was not found (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeRequestTooLarge indicates an oversized request body (413).
	ErrorTypeRequestTooLarge = "request_too_large"

	// ErrorTypeRateLimitExceeded indicates too many requests (429).
	ErrorTypeRateLimitExceeded = "rate_limit_exceeded"

	// ErrorTypeRequestCancelled indicates the request was cancelled (499).
	ErrorTypeRequestCancelled = "request_cancelled"

	// ErrorTypeServerError indicates an internal server error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates an upstream error (502).
	ErrorTypeBadGateway = "bad_gateway"

	// ErrorTypeServiceUnavailable indicates temporary unavailability (503).
	ErrorTypeServiceUnavailable = "service_unavailable"

	// ErrorTypeGatewayTimeout indicates an upstream timeout (504).
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// Error code constants for errors raised before the request is forwarded.
const (
	// CodeMissingField indicates a required field is missing.
	CodeMissingField = "missing_field"

	// CodeInvalidValue indicates a field has an invalid value.
	CodeInvalidValue = "invalid_value"

	// CodeInvalidJSON indicates the request body is not valid JSON.
	CodeInvalidJSON = "invalid_json"

	// CodeRequestTooLarge indicates the request payload is too large.
	CodeRequestTooLarge = "request_too_large"

	// CodeInvalidAPIKey indicates a missing or wrong client API key.
	CodeInvalidAPIKey = "invalid_api_key"

	// CodeInternalError indicates an internal server error.
	CodeInternalError = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates an error response for invalid requests (400).
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewAuthenticationError creates an error response for rejected client keys (401).
func NewAuthenticationError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeAuthentication, "", CodeInvalidAPIKey)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// TypeForStatus returns the error type conventionally used with status.
func TypeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuthentication
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status == http.StatusRequestEntityTooLarge:
		return ErrorTypeRequestTooLarge
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimitExceeded
	case status == 499:
		return ErrorTypeRequestCancelled
	case status == http.StatusBadGateway:
		return ErrorTypeBadGateway
	case status == http.StatusServiceUnavailable:
		return ErrorTypeServiceUnavailable
	case status == http.StatusGatewayTimeout:
		return ErrorTypeGatewayTimeout
	case status >= 500:
		return ErrorTypeServerError
	case status >= 400:
		return ErrorTypeInvalidRequest
	default:
		return ErrorTypeServerError
	}
}

// StatusCode returns the HTTP status for the response: Status when set,
// otherwise the status conventionally used with the error type.
func (e *ErrorResponse) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Error.HTTPStatusCode()
}

// HTTPStatusCode returns the appropriate HTTP status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return 400
	case ErrorTypeAuthentication:
		return 401
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeRequestTooLarge:
		return 413
	case ErrorTypeRateLimitExceeded:
		return 429
	case ErrorTypeRequestCancelled:
		return 499
	case ErrorTypeServerError:
		return 500
	case ErrorTypeBadGateway:
		return 502
	case ErrorTypeServiceUnavailable:
		return 503
	case ErrorTypeGatewayTimeout:
		return 504
	default:
		return 500
	}
}
