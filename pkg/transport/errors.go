package transport

import (
	"encoding/json"
	"net/http"

	"github.com/streetball/api/pkg/api"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Gate errors carry their own status and are written with
// WriteErrorResponse directly.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case api.ErrorTypeAuthorization:
		return http.StatusForbidden
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes the error envelope with an explicit status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	WriteJSON(w, statusCode, api.NewErrorResponse(apiErr))
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// NotFound returns the catch-all handler for unmatched routes.
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteAPIError(w, api.NewNotFoundError("Route not found: "+r.Method+" "+r.URL.RequestURI()))
	})
}
