package config

import (
	"errors"
	"fmt"
	"slices"
)

var knownStrategies = []string{"jwt", "apikey", "session"}

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be >= 0, got %d", c.Server.MaxBodyBytes))
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be trace, debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	switch c.Database.Type {
	case "memory":
	case "postgres":
		if c.Database.Postgres.DSN == "" && c.Database.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("database.postgres.dsn or database.postgres.dsn_file is required when database.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("database.type must be \"memory\" or \"postgres\", got %q", c.Database.Type))
	}
	for i, u := range c.Database.Seed {
		if u.Email == "" {
			errs = append(errs, fmt.Errorf("database.seed[%d].email is required", i))
		}
	}

	if len(c.Auth.Strategies) == 0 {
		errs = append(errs, fmt.Errorf("auth.strategies must name at least one strategy"))
	}
	seen := make(map[string]bool, len(c.Auth.Strategies))
	for i, s := range c.Auth.Strategies {
		if !slices.Contains(knownStrategies, s) {
			errs = append(errs, fmt.Errorf("auth.strategies[%d]: unknown strategy %q", i, s))
		}
		if seen[s] {
			errs = append(errs, fmt.Errorf("auth.strategies[%d]: duplicate strategy %q", i, s))
		}
		seen[s] = true
	}

	if c.UsesStrategy("jwt") && c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.jwks_url is required when the jwt strategy is enabled"))
	}
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" && k.KeyFile == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
		}
		if k.Subject == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
		}
	}

	if c.UsesStrategy("session") && c.Session.CookieName == "" {
		errs = append(errs, fmt.Errorf("session.cookie_name is required when the session strategy is enabled"))
	}
	if c.NeedsRedis() && c.Session.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("session.redis.addr is required"))
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory", "redis":
		default:
			errs = append(errs, fmt.Errorf("ratelimit.backend must be \"memory\" or \"redis\", got %q", c.RateLimit.Backend))
		}
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		errs = append(errs, fmt.Errorf("observability.metrics.path is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}
