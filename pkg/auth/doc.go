// Package auth implements the request authorization gate of the StreetBall API.
//
// Authentication uses a chain of explicitly configured strategies with
// three-outcome voting: a strategy abstains when its credential (bearer
// header or session cookie) is absent, and otherwise decides Yes or No
// through its Verifier. When every strategy abstains the request fails with
// ErrMissingCredential.
//
// Authorization is a pure any-of role check over the authenticated Identity.
// Both stages are exposed as net/http middleware through Gate; failures are
// rendered by pkg/api and never reach the route handler.
package auth
