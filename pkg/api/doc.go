// Package api defines the JSON envelopes exchanged with StreetBall API clients.
//
// Successful requests return a [Response] envelope ({"success": true,
// "message", "data"}). Failed requests return an [ErrorResponse] carrying an
// [APIError] with a generic category and, for gate failures, a taxonomy code.
// The package performs no I/O.
package api
