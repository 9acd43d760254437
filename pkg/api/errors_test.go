package api

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAPIErrorInterface(t *testing.T) {
	var _ error = &APIError{}
}

func TestAPIErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			"with code",
			NewAuthenticationError("missing_credential", "authentication required"),
			"authentication_error (missing_credential): authentication required",
		},
		{
			"without code",
			NewServerError("internal failure"),
			"server_error: internal failure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("APIError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		wantType ErrorType
	}{
		{"authentication", NewAuthenticationError("invalid_credential", "x"), ErrorTypeAuthentication},
		{"authorization", NewAuthorizationError("insufficient_role", "x"), ErrorTypeAuthorization},
		{"invalid request", NewInvalidRequestError("x"), ErrorTypeInvalidRequest},
		{"not found", NewNotFoundError("x"), ErrorTypeNotFound},
		{"too many requests", NewTooManyRequestsError("x"), ErrorTypeTooManyRequests},
		{"unavailable", NewUnavailableError("x"), ErrorTypeUnavailable},
		{"server", NewServerError("x"), ErrorTypeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.wantType)
			}
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponse(NewAuthorizationError("insufficient_role", "access denied"))

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	got := string(data)
	want := `{"success":false,"message":"access denied","error":{"type":"authorization_error","code":"insufficient_role"}}`
	if got != want {
		t.Errorf("JSON = %s, want %s", got, want)
	}
}

func TestSuccessEnvelope(t *testing.T) {
	data, err := json.Marshal(Success(nil, "Server is healthy"))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"success":true`) {
		t.Errorf("missing success flag: %s", data)
	}
	if !strings.Contains(string(data), `"data":null`) {
		t.Errorf("nil data should serialize as null: %s", data)
	}
}
