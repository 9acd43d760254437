// Package config provides unified configuration for the StreetBall API.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. Optional .env file (variables already set in the environment win)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (STREETBALL_ prefix, plus PORT)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the API server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Database      DatabaseConfig      `yaml:"database"`
	Session       SessionConfig       `yaml:"session"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit"`
	CORS          CORSConfig          `yaml:"cors"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 3000
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`   // default: 1 MiB
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error; default: info
	Format string `yaml:"format"` // text or json; default: text
	Debug  string `yaml:"debug"`  // comma-separated debug categories, e.g. "auth,jwt"
}

// DatabaseConfig holds user store settings.
type DatabaseConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
	Seed     []SeedUser     `yaml:"seed"` // created at startup in the memory store
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// SeedUser is a user created when the memory store starts.
type SeedUser struct {
	ID    string   `yaml:"id" json:"id"`
	Email string   `yaml:"email" json:"email"`
	Name  string   `yaml:"name" json:"name"`
	Roles []string `yaml:"roles" json:"roles"`
}

// SessionConfig holds Redis session settings for the session strategy.
type SessionConfig struct {
	Redis      RedisConfig   `yaml:"redis"`
	KeyPrefix  string        `yaml:"key_prefix"`  // default: "session:"
	CookieName string        `yaml:"cookie_name"` // default: "sid"
	TTL        time.Duration `yaml:"ttl"`         // default: 24h
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"` // default: "localhost:6379"
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
	DB           int    `yaml:"db"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Strategies lists the credential strategies in evaluation order.
	// Known values: "jwt", "apikey", "session". Default: ["apikey"].
	Strategies []string `yaml:"strategies"`

	// LookupUsers resolves every verified subject against the user store,
	// whose roles are authoritative. Default: true.
	LookupUsers bool `yaml:"lookup_users"`

	// DefaultRoles are given to seed users declared without roles.
	DefaultRoles []string `yaml:"default_roles"` // default: ["user"]

	JWT     JWTConfig      `yaml:"jwt"`
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// JWTConfig holds JWT strategy settings.
type JWTConfig struct {
	Secret             string        `yaml:"secret"`
	SecretFile         string        `yaml:"secret_file"`
	JWKSURL            string        `yaml:"jwks_url"`
	Issuer             string        `yaml:"issuer"`
	Audience           string        `yaml:"audience"`
	SubjectClaim       string        `yaml:"subject_claim"`        // default: "sub"
	RolesClaim         string        `yaml:"roles_claim"`          // default: "roles"
	CacheTTL           time.Duration `yaml:"cache_ttl"`            // default: 1h
	MinRefreshInterval time.Duration `yaml:"min_refresh_interval"` // default: 5s
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string   `yaml:"key" json:"key"`
	KeyFile string   `yaml:"key_file" json:"key_file"`
	Subject string   `yaml:"subject" json:"subject"`
	Roles   []string `yaml:"roles" json:"roles"`
}

// RateLimitConfig holds per-identity rate limiting settings.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`     // default: false
	Backend    string         `yaml:"backend"`     // "memory" or "redis", default: "memory"
	KeyPrefix  string         `yaml:"key_prefix"`  // default: "ratelimit:"
	DefaultRPM int            `yaml:"default_rpm"` // default: 60; <= 0 means unlimited
	Roles      map[string]int `yaml:"roles"`       // requests per minute by role
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"` // default: ["*"]
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
		},
		Session: SessionConfig{
			Redis:      RedisConfig{Addr: "localhost:6379"},
			KeyPrefix:  "session:",
			CookieName: "sid",
			TTL:        24 * time.Hour,
		},
		Auth: AuthConfig{
			Strategies:   []string{"apikey"},
			LookupUsers:  true,
			DefaultRoles: []string{"user"},
			JWT: JWTConfig{
				SubjectClaim: "sub",
				RolesClaim:   "roles",
				CacheTTL:     time.Hour,
			},
		},
		RateLimit: RateLimitConfig{
			Backend:    "memory",
			KeyPrefix:  "ratelimit:",
			DefaultRPM: 60,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// UsesStrategy reports whether name is one of the configured strategies.
func (c *Config) UsesStrategy(name string) bool {
	for _, s := range c.Auth.Strategies {
		if s == name {
			return true
		}
	}
	return false
}

// NeedsRedis reports whether any component requires a Redis client.
func (c *Config) NeedsRedis() bool {
	return c.UsesStrategy("session") || (c.RateLimit.Enabled && c.RateLimit.Backend == "redis")
}
