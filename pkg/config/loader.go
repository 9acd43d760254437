package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env file (STREETBALL_ENV_FILE or ./.env), if present
//  3. YAML config file (explicit path, STREETBALL_CONFIG env, ./config.yaml, /etc/streetball/config.yaml)
//  4. Environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	if filePath := discoverConfigFile(configPath); filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv populates the process environment from a .env file. Variables
// that are already set are left untouched. A missing default file is fine; a
// missing explicitly named file is an error.
func loadDotEnv() error {
	path := os.Getenv("STREETBALL_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// discoverConfigFile returns the first config file found in discovery order,
// or the empty string.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("STREETBALL_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/streetball/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile parses a YAML file over cfg. Fields absent from the file keep
// their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. Malformed
// values are reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	intVar := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	durationVar := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	boolVar := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	stringVar := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	listVar := func(name string, dst *[]string) {
		if v := os.Getenv(name); v != "" {
			*dst = splitList(v)
		}
	}

	intVar("PORT", &cfg.Server.Port)
	intVar("STREETBALL_PORT", &cfg.Server.Port)
	stringVar("STREETBALL_LOG_LEVEL", &cfg.Logging.Level)
	stringVar("STREETBALL_LOG_FORMAT", &cfg.Logging.Format)
	stringVar("STREETBALL_LOG_DEBUG", &cfg.Logging.Debug)

	stringVar("STREETBALL_DATABASE_TYPE", &cfg.Database.Type)
	stringVar("STREETBALL_DATABASE_DSN", &cfg.Database.Postgres.DSN)
	boolVar("STREETBALL_DATABASE_MIGRATE", &cfg.Database.Postgres.MigrateOnStart)

	stringVar("STREETBALL_REDIS_ADDR", &cfg.Session.Redis.Addr)
	stringVar("STREETBALL_REDIS_PASSWORD", &cfg.Session.Redis.Password)
	intVar("STREETBALL_REDIS_DB", &cfg.Session.Redis.DB)
	stringVar("STREETBALL_SESSION_COOKIE", &cfg.Session.CookieName)
	durationVar("STREETBALL_SESSION_TTL", &cfg.Session.TTL)

	listVar("STREETBALL_AUTH_STRATEGIES", &cfg.Auth.Strategies)
	boolVar("STREETBALL_AUTH_LOOKUP_USERS", &cfg.Auth.LookupUsers)
	stringVar("STREETBALL_JWT_SECRET", &cfg.Auth.JWT.Secret)
	stringVar("STREETBALL_JWT_JWKS_URL", &cfg.Auth.JWT.JWKSURL)
	stringVar("STREETBALL_JWT_ISSUER", &cfg.Auth.JWT.Issuer)
	stringVar("STREETBALL_JWT_AUDIENCE", &cfg.Auth.JWT.Audience)

	// STREETBALL_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("STREETBALL_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			errs = append(errs, fmt.Errorf("STREETBALL_API_KEYS: %w", err))
		} else {
			cfg.Auth.APIKeys = keys
		}
	}

	boolVar("STREETBALL_RATELIMIT_ENABLED", &cfg.RateLimit.Enabled)
	stringVar("STREETBALL_RATELIMIT_BACKEND", &cfg.RateLimit.Backend)
	intVar("STREETBALL_RATELIMIT_DEFAULT_RPM", &cfg.RateLimit.DefaultRPM)

	listVar("STREETBALL_CORS_ORIGINS", &cfg.CORS.AllowedOrigins)
	boolVar("STREETBALL_METRICS_ENABLED", &cfg.Observability.Metrics.Enabled)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveFileReferences fills empty secret fields from their _file variants.
// File content is trimmed of surrounding whitespace.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name string
		file string
		dst  *string
	}{
		{"database.postgres.dsn_file", cfg.Database.Postgres.DSNFile, &cfg.Database.Postgres.DSN},
		{"session.redis.password_file", cfg.Session.Redis.PasswordFile, &cfg.Session.Redis.Password},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
	}
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		refs = append(refs, struct {
			name string
			file string
			dst  *string
		}{fmt.Sprintf("auth.api_keys[%d].key_file", i), k.KeyFile, &k.Key})
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.dst != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.dst = val
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
