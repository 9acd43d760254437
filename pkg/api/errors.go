package api

import "fmt"

// ErrorType represents the generic category of an API error. It is the only
// classification exposed to clients; internal causes are never serialized.
type ErrorType string

const (
	ErrorTypeAuthentication  ErrorType = "authentication_error"
	ErrorTypeAuthorization   ErrorType = "authorization_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeUnavailable     ErrorType = "service_unavailable"
	ErrorTypeServerError     ErrorType = "server_error"
)

// APIError is the structured error carried in an error envelope.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse is the top-level JSON body of every failed request.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse wraps an APIError in the error envelope.
func NewErrorResponse(err *APIError) ErrorResponse {
	return ErrorResponse{Success: false, Message: err.Message, Error: err}
}

// NewAuthenticationError creates an APIError for rejected credentials.
func NewAuthenticationError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeAuthentication, Code: code, Message: message}
}

// NewAuthorizationError creates an APIError for a denied role check.
func NewAuthorizationError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeAuthorization, Code: code, Message: message}
}

// NewInvalidRequestError creates an APIError for malformed requests.
func NewInvalidRequestError(message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Message: message}
}

// NewNotFoundError creates an APIError for resources or routes that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{Type: ErrorTypeTooManyRequests, Code: "rate_limited", Message: message}
}

// NewUnavailableError creates an APIError for a dependency that is down.
func NewUnavailableError(message string) *APIError {
	return &APIError{Type: ErrorTypeUnavailable, Message: message}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}
