// Package app wires configuration, stores, the auth gate, and the HTTP
// adapter into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streetball/api/pkg/auth"
	"github.com/streetball/api/pkg/auth/apikey"
	"github.com/streetball/api/pkg/auth/jwt"
	"github.com/streetball/api/pkg/auth/session"
	"github.com/streetball/api/pkg/config"
	"github.com/streetball/api/pkg/debug"
	"github.com/streetball/api/pkg/transport"
	transporthttp "github.com/streetball/api/pkg/transport/http"
	"github.com/streetball/api/pkg/user"
	"github.com/streetball/api/pkg/user/memory"
	"github.com/streetball/api/pkg/user/postgres"
)

// Startup stages reported in StartupError.
const (
	StageConfig   = "config"
	StageUsers    = "users"
	StageSessions = "sessions"
	StageAuth     = "auth"
	StageListen   = "listen"
)

// StartupError reports which stage of startup failed.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// App is a fully wired server.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	users    user.Store
	redis    *redis.Client
	sessions *session.Store
	handler  http.Handler
	server   *transporthttp.Server
}

// New builds the application. On failure every resource opened so far is
// released and a *StartupError is returned.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		return nil, &StartupError{Stage: StageConfig, Err: errors.New("no configuration")}
	}
	if verr := cfg.Validate(); verr != nil {
		return nil, &StartupError{Stage: StageConfig, Err: verr}
	}

	debug.Init(cfg.Logging.Debug)
	if cats := debug.Categories(); len(cats) > 0 {
		logger.Info("debug logging enabled", "categories", cats)
	}

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.users, err = openUsers(ctx, cfg, logger); err != nil {
		return nil, &StartupError{Stage: StageUsers, Err: err}
	}

	if cfg.NeedsRedis() {
		if err = a.openRedis(ctx); err != nil {
			return nil, &StartupError{Stage: StageSessions, Err: err}
		}
	}

	gate, err := a.buildGate()
	if err != nil {
		return nil, &StartupError{Stage: StageAuth, Err: err}
	}

	adapterCfg := transporthttp.Config{
		MaxBodySize:   cfg.Server.MaxBodyBytes,
		CORS:          transport.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		SessionCookie: cfg.Session.CookieName,
	}
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}

	var sessions transporthttp.SessionStore
	if a.sessions != nil {
		sessions = a.sessions
	}
	a.handler = transporthttp.NewAdapter(gate, a.users, sessions, adapterCfg, logger).Handler()
	a.server = transporthttp.NewServer(a.handler,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	logger.Info("application ready",
		"database", cfg.Database.Type,
		"strategies", strings.Join(cfg.Auth.Strategies, ","),
		"ratelimit", cfg.RateLimit.Enabled,
	)
	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Sessions returns the session store, or nil when no Redis is configured.
func (a *App) Sessions() *session.Store { return a.sessions }

// Users returns the user store.
func (a *App) Users() user.Store { return a.users }

// Run listens on the configured port and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := a.server.Listen()
	if err != nil {
		return &StartupError{Stage: StageListen, Err: err}
	}
	return a.server.Serve(ctx, ln)
}

// Close releases the user store and the Redis client.
func (a *App) Close() error {
	var errs []error
	if a.users != nil {
		errs = append(errs, a.users.Close())
		a.users = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	return errors.Join(errs...)
}

func openUsers(ctx context.Context, cfg *config.Config, logger *slog.Logger) (user.Store, error) {
	seed := seedUsers(cfg)

	switch cfg.Database.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Database.Postgres.DSN,
			MaxConns:       cfg.Database.Postgres.MaxConns,
			MigrateOnStart: cfg.Database.Postgres.MigrateOnStart,
		}, logger)
		if err != nil {
			return nil, err
		}
		for _, u := range seed {
			if err := store.CreateUser(ctx, u); err != nil && !errors.Is(err, user.ErrConflict) {
				store.Close()
				return nil, fmt.Errorf("seeding user %s: %w", u.Email, err)
			}
		}
		logger.Info("user store enabled", "type", "postgres", "seeded", len(seed))
		return store, nil

	default:
		store, err := memory.New(seed...)
		if err != nil {
			return nil, fmt.Errorf("seeding users: %w", err)
		}
		logger.Info("user store enabled", "type", "memory", "seeded", len(seed))
		return store, nil
	}
}

func seedUsers(cfg *config.Config) []*user.User {
	out := make([]*user.User, 0, len(cfg.Database.Seed))
	for _, s := range cfg.Database.Seed {
		roles := s.Roles
		if len(roles) == 0 {
			roles = cfg.Auth.DefaultRoles
		}
		out = append(out, &user.User{ID: s.ID, Email: s.Email, Name: s.Name, Roles: roles})
	}
	return out
}

func (a *App) openRedis(ctx context.Context) error {
	rc := a.cfg.Session.Redis
	a.redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connecting to redis at %s: %w", rc.Addr, err)
	}

	a.sessions = session.NewStore(a.redis, a.cfg.Session.KeyPrefix, a.cfg.Session.TTL)
	a.logger.Info("redis connected", "addr", rc.Addr)
	return nil
}

func (a *App) buildGate() (*auth.Gate, error) {
	strategies := make([]auth.Strategy, 0, len(a.cfg.Auth.Strategies))
	for _, name := range a.cfg.Auth.Strategies {
		s, err := a.buildStrategy(name)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", name, err)
		}
		strategies = append(strategies, s)
	}

	var lookup auth.UserLookup
	if a.cfg.Auth.LookupUsers {
		lookup = user.Lookup(a.users)
	}

	opts := []auth.GateOption{auth.WithLogger(a.logger)}
	if rl := a.cfg.RateLimit; rl.Enabled {
		if rl.Backend == "redis" {
			opts = append(opts, auth.WithRateLimiter(auth.NewRedisLimiter(a.redis, rl.KeyPrefix, rl.Roles, rl.DefaultRPM)))
		} else {
			opts = append(opts, auth.WithRateLimiter(auth.NewInProcessLimiter(rl.Roles, rl.DefaultRPM)))
		}
	}

	return auth.NewGate(auth.NewAuthenticator(lookup, strategies...), opts...), nil
}

func (a *App) buildStrategy(name string) (auth.Strategy, error) {
	switch name {
	case "jwt":
		jc := a.cfg.Auth.JWT
		v, err := jwt.New(jwt.Config{
			Secret:             jc.Secret,
			JWKSURL:            jc.JWKSURL,
			Issuer:             jc.Issuer,
			Audience:           jc.Audience,
			SubjectClaim:       jc.SubjectClaim,
			RolesClaim:         jc.RolesClaim,
			CacheTTL:           jc.CacheTTL,
			MinRefreshInterval: jc.MinRefreshInterval,
			Logger:             a.logger,
		})
		if err != nil {
			return auth.Strategy{}, err
		}
		return v.Strategy(), nil

	case "apikey":
		keys := make([]apikey.Key, 0, len(a.cfg.Auth.APIKeys))
		for _, k := range a.cfg.Auth.APIKeys {
			keys = append(keys, apikey.Key{Key: k.Key, Subject: k.Subject, Roles: k.Roles})
		}
		return apikey.New(keys).Strategy(), nil

	case "session":
		if a.sessions == nil {
			return auth.Strategy{}, errors.New("session store not configured")
		}
		return session.NewVerifier(a.sessions).Strategy(a.cfg.Session.CookieName), nil

	default:
		return auth.Strategy{}, fmt.Errorf("unknown strategy %q", name)
	}
}

// NewLogger builds the process logger from the logging configuration.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: debug.ParseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
