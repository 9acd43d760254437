// Package transport provides the net/http middleware shared by every route
// of the StreetBall API and the JSON error boundary.
//
// # Middleware
//
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), structured access logging via log/slog, security headers,
// CORS, and request body limits. Chain composes them outermost first.
//
// # Error boundary
//
// WriteAPIError and WriteErrorResponse render pkg/api error envelopes. All
// failures, including those raised by the authorization gate, pass through
// these functions so clients see one uniform error shape.
package transport
