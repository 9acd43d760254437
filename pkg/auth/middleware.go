package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/streetball/api/pkg/api"
	"github.com/streetball/api/pkg/observability"
	"github.com/streetball/api/pkg/transport"
)

// Gate combines the Authenticator, the role check, and an optional rate
// limiter into net/http middleware.
type Gate struct {
	authn   *Authenticator
	limiter RateLimiter
	logger  *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithRateLimiter enables per-identity rate limiting after authentication.
func WithRateLimiter(l RateLimiter) GateOption {
	return func(g *Gate) { g.limiter = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// NewGate creates a Gate around an Authenticator.
func NewGate(authn *Authenticator, opts ...GateOption) *Gate {
	g := &Gate{authn: authn, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate returns middleware that resolves the caller's Identity and
// stores it in the request context. Requests that already carry an Identity
// pass through unchanged.
func (g *Gate) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			result := g.authn.Authenticate(r.Context(), r)

			// The client went away while a verifier was blocked; nothing to answer.
			if r.Context().Err() != nil {
				return
			}

			if result.Decision != Yes || result.Identity == nil {
				err := result.Err
				if err == nil {
					err = ErrMissingCredential
				}
				observability.AuthenticationsTotal.WithLabelValues(methodLabel(result), Code(err)).Inc()
				g.logger.Warn("authentication failed",
					"request_id", transport.RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				WriteError(w, err)
				return
			}

			observability.AuthenticationsTotal.WithLabelValues(result.Identity.Method, "ok").Inc()
			g.logger.Debug("authentication succeeded",
				"request_id", transport.RequestIDFromContext(r.Context()),
				"subject", result.Identity.Subject,
				"method", result.Identity.Method,
				"path", r.URL.Path,
			)

			if g.limiter != nil {
				if err := g.limiter.Allow(r.Context(), result.Identity); err != nil {
					g.logger.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"roles", result.Identity.Roles,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(primaryRole(result.Identity)).Inc()
					WriteError(w, err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))
		})
	}
}

// RequireRoles returns middleware that lets the request through only when
// the context Identity holds at least one of roles. It must run after
// Authenticate. With no roles, any authenticated Identity is allowed.
func (g *Gate) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	required := NormalizeRoles(roles)
	label := strings.Join(required, ",")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			decision := Authorize(identity, required)
			if !decision.Allowed {
				if errors.Is(decision.Reason, ErrInsufficientRole) {
					observability.AuthorizationDenialsTotal.WithLabelValues(label).Inc()
				}
				g.logger.Warn("authorization denied",
					"request_id", transport.RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", decision.Reason,
				)
				WriteError(w, decision.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard is Authenticate followed by RequireRoles.
func (g *Gate) Guard(roles ...string) func(http.Handler) http.Handler {
	authn := g.Authenticate()
	authz := g.RequireRoles(roles...)
	return func(next http.Handler) http.Handler {
		return authn(authz(next))
	}
}

// WriteError renders a gate failure as an error envelope. Only the generic
// category and the taxonomy code reach the client.
func WriteError(w http.ResponseWriter, err error) {
	code := Code(err)
	status := StatusCode(err)

	var apiErr *api.APIError
	switch {
	case errors.Is(err, ErrMissingCredential):
		apiErr = api.NewAuthenticationError(code, "Authentication required")
	case errors.Is(err, ErrInvalidCredential):
		apiErr = api.NewAuthenticationError(code, "Invalid credentials")
	case errors.Is(err, ErrCredentialVerification):
		apiErr = api.NewAuthenticationError(code, "Credential verification failed")
	case errors.Is(err, ErrInsufficientRole):
		apiErr = api.NewAuthorizationError(code, "Access denied: insufficient role")
	case errors.Is(err, ErrTooManyRequests):
		apiErr = api.NewTooManyRequestsError("Rate limit exceeded")
	default:
		apiErr = api.NewServerError("internal authentication error")
	}

	transport.WriteErrorResponse(w, apiErr, status)
}

func methodLabel(result AuthResult) string {
	if result.Method == "" {
		return "none"
	}
	return result.Method
}

func primaryRole(id *Identity) string {
	if id == nil || len(id.Roles) == 0 {
		return "none"
	}
	return id.Roles[0]
}
