package auth

import "slices"

// AuthorizationDecision is the outcome of Authorize. Reason is set only on deny.
type AuthorizationDecision struct {
	Allowed bool
	Reason  error
}

// Allow is the allow decision.
var Allow = AuthorizationDecision{Allowed: true}

// Deny returns a deny decision carrying reason.
func Deny(reason error) AuthorizationDecision {
	return AuthorizationDecision{Reason: reason}
}

// Authorize allows iff the identity holds at least one of the required roles.
//
// An empty required set places no restriction on the route: every
// authenticated identity is allowed. A nil identity is always denied with
// ErrMissingCredential. Authorize never modifies the identity.
func Authorize(identity *Identity, required []string) AuthorizationDecision {
	if identity == nil {
		return Deny(ErrMissingCredential)
	}

	want := NormalizeRoles(required)
	if len(want) == 0 {
		return Allow
	}

	for _, role := range want {
		if slices.Contains(identity.Roles, role) {
			return Allow
		}
	}

	return Deny(&RoleError{
		Required: want,
		Actual:   slices.Clone(identity.Roles),
	})
}
