package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/streetball/api/pkg/api"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name       string
		errType    api.ErrorType
		wantStatus int
	}{
		{"authentication_error -> 401", api.ErrorTypeAuthentication, http.StatusUnauthorized},
		{"authorization_error -> 403", api.ErrorTypeAuthorization, http.StatusForbidden},
		{"invalid_request -> 400", api.ErrorTypeInvalidRequest, http.StatusBadRequest},
		{"not_found -> 404", api.ErrorTypeNotFound, http.StatusNotFound},
		{"too_many_requests -> 429", api.ErrorTypeTooManyRequests, http.StatusTooManyRequests},
		{"service_unavailable -> 503", api.ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{"server_error -> 500", api.ErrorTypeServerError, http.StatusInternalServerError},
		{"unknown type -> 500", api.ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &api.APIError{Type: tt.errType, Message: "test"}
			got := HTTPStatusFromError(err)
			if got != tt.wantStatus {
				t.Errorf("HTTPStatusFromError(%q) = %d, want %d", tt.errType, got, tt.wantStatus)
			}
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	apiErr := api.NewInvalidRequestError("body is required")
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, apiErr, http.StatusBadRequest)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Success {
		t.Error("success = true, want false")
	}
	if body.Message != "body is required" {
		t.Errorf("message = %q, want %q", body.Message, "body is required")
	}
	if body.Error == nil || body.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %+v, want type invalid_request", body.Error)
	}
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound().ServeHTTP(rec, httptest.NewRequest("DELETE", "/nope?x=1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body api.ErrorResponse
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Message != "Route not found: DELETE /nope?x=1" {
		t.Errorf("message = %q", body.Message)
	}
}
