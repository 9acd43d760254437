package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/streetball/api/pkg/api"
	"github.com/streetball/api/pkg/auth"
	"github.com/streetball/api/pkg/observability"
	"github.com/streetball/api/pkg/transport"
	"github.com/streetball/api/pkg/user"
)

// SessionStore is the subset of the session store used by logout.
type SessionStore interface {
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Adapter serves the StreetBall API over HTTP.
type Adapter struct {
	gate     *auth.Gate
	users    user.Store
	sessions SessionStore // nil when the session strategy is disabled
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize   int64
	CORS          transport.CORSConfig
	MetricsPath   string // empty disables the metrics endpoint
	SessionCookie string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:   1 << 20,
		MetricsPath:   "/metrics",
		SessionCookie: "sid",
	}
}

// NewAdapter creates the adapter and registers all routes. sessions may be nil.
func NewAdapter(gate *auth.Gate, users user.Store, sessions SessionStore, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		gate:     gate,
		users:    users,
		sessions: sessions,
		config:   cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	a.mux.Handle("GET /{$}", gate.Guard("user")(http.HandlerFunc(a.handleRoot)))
	a.mux.HandleFunc("GET /api/v1", a.handleIndex)
	a.mux.HandleFunc("GET /health", a.handleHealth)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.HandleFunc("GET /readyz", a.handleReady)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, observability.Handler())
	}

	a.mux.Handle("GET /api/v1/users/me", gate.Guard()(http.HandlerFunc(a.handleCurrentUser)))
	a.mux.Handle("GET /api/v1/users", gate.Guard("admin")(http.HandlerFunc(a.handleListUsers)))
	a.mux.Handle("GET /api/v1/users/{id}", gate.Guard("admin")(http.HandlerFunc(a.handleGetUser)))
	a.mux.Handle("GET /api/v1/auth/me", gate.Guard()(http.HandlerFunc(a.handleWhoAmI)))
	a.mux.Handle("POST /api/v1/auth/logout", gate.Guard()(http.HandlerFunc(a.handleLogout)))

	a.mux.Handle("/", transport.NotFound())

	return a
}

// Handler returns the routed handler wrapped in the ambient middleware,
// outermost first: recovery, request id, access log, metrics, security
// headers, CORS, body limit.
func (a *Adapter) Handler() http.Handler {
	return transport.Chain(
		transport.Recovery(a.logger),
		transport.RequestID(),
		transport.Logging(a.logger),
		observability.MetricsMiddleware,
		transport.SecurityHeaders(),
		transport.CORS(a.config.CORS),
		transport.MaxBodySize(a.config.MaxBodySize),
	)(a.mux)
}

func (a *Adapter) handleRoot(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, api.Success("Welcome to the StreetBall API!", "Endpoint is working"))
}

func (a *Adapter) handleIndex(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, api.Welcome{Message: "Welcome to StreetBall API", Version: api.Version})
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, api.Success(nil, "Server is healthy"))
}

func (a *Adapter) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.users.Ping(r.Context()); err != nil {
		a.logger.Warn("readiness check failed", "component", "users", "error", err)
		transport.WriteAPIError(w, api.NewUnavailableError("Service not ready"))
		return
	}
	if a.sessions != nil {
		if err := a.sessions.Ping(r.Context()); err != nil {
			a.logger.Warn("readiness check failed", "component", "sessions", "error", err)
			transport.WriteAPIError(w, api.NewUnavailableError("Service not ready"))
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, api.Success(nil, "Server is ready"))
}

func (a *Adapter) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	a.writeUser(w, r, identity.Subject)
}

func (a *Adapter) handleGetUser(w http.ResponseWriter, r *http.Request) {
	a.writeUser(w, r, r.PathValue("id"))
}

func (a *Adapter) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := a.users.GetUser(r.Context(), id)
	if errors.Is(err, user.ErrNotFound) {
		transport.WriteAPIError(w, api.NewNotFoundError("User not found"))
		return
	}
	if err != nil {
		a.serverError(w, r, "loading user", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.Success(u, "User retrieved"))
}

func (a *Adapter) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		a.serverError(w, r, "listing users", err)
		return
	}
	if users == nil {
		users = []*user.User{}
	}
	transport.WriteJSON(w, http.StatusOK, api.Success(users, "Users retrieved"))
}

type identityView struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
	Method  string   `json:"method"`
}

func (a *Adapter) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	transport.WriteJSON(w, http.StatusOK, api.Success(identityView{
		Subject: id.Subject,
		Roles:   id.Roles,
		Method:  id.Method,
	}, "Authenticated"))
}

func (a *Adapter) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if sid := id.Metadata["session_id"]; sid != "" && a.sessions != nil {
		if err := a.sessions.Delete(r.Context(), sid); err != nil {
			a.serverError(w, r, "deleting session", err)
			return
		}
	}
	if a.config.SessionCookie != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     a.config.SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	transport.WriteJSON(w, http.StatusOK, api.Success(nil, "Logged out"))
}

func (a *Adapter) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	a.logger.Error(op+" failed",
		"request_id", transport.RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
	transport.WriteAPIError(w, api.NewServerError("Internal server error"))
}
