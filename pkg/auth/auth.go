package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/streetball/api/pkg/debug"
)

// AuthDecision represents the three possible outcomes of one strategy.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means the strategy found no credential of its kind.
	// The chain continues to the next strategy.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
	Method   string    // strategy that decided; empty when all abstained
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique identifier (required, non-empty).
	Subject string

	// Roles is the normalized, non-empty role set.
	Roles []string

	// Method names the strategy that authenticated the request.
	Method string

	// Metadata carries strategy-specific data, e.g. "session_id".
	Metadata map[string]string
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	return slices.Contains(id.Roles, normalizeRole(role))
}

// Principal is what a Verifier or UserLookup resolves a credential to.
type Principal struct {
	Subject  string
	Roles    []string
	Metadata map[string]string
}

// Verifier checks a credential. It returns (nil, nil) when the credential is
// well-formed but resolves to no principal, and an error when verification
// itself fails.
type Verifier interface {
	Verify(ctx context.Context, cred Credential) (*Principal, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, cred Credential) (*Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, cred Credential) (*Principal, error) {
	return f(ctx, cred)
}

// UserLookup resolves a verified subject to the stored principal. It returns
// (nil, nil) for unknown subjects.
type UserLookup interface {
	LookupUser(ctx context.Context, subject string) (*Principal, error)
}

// Strategy pairs a credential extractor with the verifier for that credential.
type Strategy struct {
	Name      string
	Extractor Extractor
	Verifier  Verifier
}

// Authenticator evaluates strategies in order using three-outcome voting.
type Authenticator struct {
	strategies []Strategy
	users      UserLookup
}

// NewAuthenticator creates an Authenticator. users may be nil, in which case
// the verifier's principal is trusted as-is.
func NewAuthenticator(users UserLookup, strategies ...Strategy) *Authenticator {
	return &Authenticator{strategies: strategies, users: users}
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If every strategy abstains the request fails with ErrMissingCredential.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, s := range a.strategies {
		cred, ok := s.Extractor.Extract(r)
		if !ok {
			debug.Trace("auth", "strategy abstained", "strategy", s.Name)
			continue
		}
		result := a.resolve(ctx, s, cred)
		result.Method = s.Name
		debug.Log("auth", "strategy decided", "strategy", s.Name, "allowed", result.Decision == Yes, "error", result.Err)
		return result
	}
	debug.Log("auth", "all strategies abstained", "strategies", len(a.strategies))
	return AuthResult{Decision: No, Err: ErrMissingCredential}
}

func (a *Authenticator) resolve(ctx context.Context, s Strategy, cred Credential) AuthResult {
	if cred.Value == "" {
		return AuthResult{Decision: No, Err: fmt.Errorf("empty %s credential: %w", cred.Source, ErrInvalidCredential)}
	}

	principal, err := safeVerify(ctx, s.Verifier, cred)
	if err != nil {
		return AuthResult{Decision: No, Err: classify(err)}
	}
	if principal == nil || principal.Subject == "" {
		return AuthResult{Decision: No, Err: ErrInvalidCredential}
	}

	if a.users != nil {
		stored, err := a.users.LookupUser(ctx, principal.Subject)
		if err != nil {
			return AuthResult{Decision: No, Err: classify(err)}
		}
		if stored == nil {
			return AuthResult{Decision: No, Err: fmt.Errorf("unknown subject %q: %w", principal.Subject, ErrInvalidCredential)}
		}
		principal = mergePrincipal(principal, stored)
	}

	roles := NormalizeRoles(principal.Roles)
	if len(roles) == 0 {
		return AuthResult{Decision: No, Err: fmt.Errorf("subject %q has no roles: %w", principal.Subject, ErrInvalidCredential)}
	}

	return AuthResult{
		Decision: Yes,
		Identity: &Identity{
			Subject:  principal.Subject,
			Roles:    roles,
			Method:   s.Name,
			Metadata: principal.Metadata,
		},
	}
}

// safeVerify converts a verifier panic into a verification error.
func safeVerify(ctx context.Context, v Verifier, cred Credential) (p *Principal, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, &VerificationError{Cause: fmt.Errorf("verifier panic: %v", r)}
		}
	}()
	return v.Verify(ctx, cred)
}

// classify keeps invalid-credential errors in their category and wraps
// everything else as a verification failure.
func classify(err error) error {
	if errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrCredentialVerification) {
		return err
	}
	return &VerificationError{Cause: err}
}

// mergePrincipal takes the stored roles as authoritative and keeps the
// verifier's metadata, overlaid by anything the store adds.
func mergePrincipal(verified, stored *Principal) *Principal {
	merged := &Principal{Subject: verified.Subject, Roles: stored.Roles}
	if len(verified.Metadata)+len(stored.Metadata) > 0 {
		merged.Metadata = make(map[string]string, len(verified.Metadata)+len(stored.Metadata))
		for k, v := range verified.Metadata {
			merged.Metadata[k] = v
		}
		for k, v := range stored.Metadata {
			merged.Metadata[k] = v
		}
	}
	return merged
}

// NormalizeRoles trims, lower-cases, and de-duplicates roles, dropping blanks.
// Order of first occurrence is preserved.
func NormalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = normalizeRole(r)
		if r == "" || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
