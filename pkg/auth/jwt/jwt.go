// Package jwt verifies bearer JWTs for the auth gate.
//
// HMAC-signed tokens are checked against a shared secret; RSA-signed tokens
// are checked against keys served from a JWKS endpoint. Issuer and audience
// are validated when configured. The subject and role claims are
// configurable.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/streetball/api/pkg/auth"
	"github.com/streetball/api/pkg/debug"
)

// Config holds the JWT verifier configuration. At least one of Secret or
// JWKSURL must be set.
type Config struct {
	// Secret enables HS256/HS384/HS512 tokens.
	Secret string

	// JWKSURL enables RS256/RS384/RS512 tokens with keys from this endpoint.
	JWKSURL string

	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Audience is the expected aud claim. Empty disables the check.
	Audience string

	// SubjectClaim names the claim used as the subject. Default: "sub".
	SubjectClaim string

	// RolesClaim names the claim carrying roles, either a JSON array or a
	// space-separated string. Default: "roles".
	RolesClaim string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// MinRefreshInterval is the shortest gap between two JWKS fetches. An
	// unknown kid inside that gap fails without a fetch. Default: 5 seconds.
	MinRefreshInterval time.Duration

	// HTTPClient is used for JWKS requests. Default: http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.RolesClaim == "" {
		c.RolesClaim = "roles"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.MinRefreshInterval == 0 {
		c.MinRefreshInterval = 5 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Verifier validates JWTs and turns their claims into a Principal.
type Verifier struct {
	config  Config
	methods []string
	jwks    *jwksCache
}

// New creates a JWT verifier.
func New(cfg Config) (*Verifier, error) {
	cfg.applyDefaults()
	if cfg.Secret == "" && cfg.JWKSURL == "" {
		return nil, errors.New("jwt: one of secret or jwks_url is required")
	}

	v := &Verifier{config: cfg}
	if cfg.Secret != "" {
		v.methods = append(v.methods, "HS256", "HS384", "HS512")
	}
	if cfg.JWKSURL != "" {
		v.methods = append(v.methods, "RS256", "RS384", "RS512")
		v.jwks = &jwksCache{
			keys:       make(map[string]*rsa.PublicKey),
			ttl:        cfg.CacheTTL,
			minRefresh: cfg.MinRefreshInterval,
			jwksURL:    cfg.JWKSURL,
			client:     cfg.HTTPClient,
			logger:     cfg.Logger,
		}
	}
	return v, nil
}

// Strategy returns the bearer-token strategy backed by this verifier. It
// abstains on bearer values that are not shaped like a compact JWT, so an
// apikey strategy later in the chain still sees opaque tokens.
func (v *Verifier) Strategy() auth.Strategy {
	return auth.Strategy{Name: "jwt", Extractor: TokenExtractor(), Verifier: v}
}

// TokenExtractor is auth.BearerExtractor restricted to values with three
// dot-separated segments. An empty bearer value is still reported as present.
func TokenExtractor() auth.Extractor {
	bearer := auth.BearerExtractor()
	return auth.ExtractorFunc(func(r *http.Request) (auth.Credential, bool) {
		cred, ok := bearer.Extract(r)
		if !ok {
			return auth.Credential{}, false
		}
		if cred.Value != "" && strings.Count(cred.Value, ".") != 2 {
			return auth.Credential{}, false
		}
		return cred, true
	})
}

// Verify parses and validates the token. A valid token without a subject
// resolves to no principal. Signature, expiry, issuer and audience failures
// are returned as errors.
func (v *Verifier) Verify(ctx context.Context, cred auth.Credential) (*auth.Principal, error) {
	token, err := jwtlib.Parse(cred.Value, func(token *jwtlib.Token) (any, error) {
		return v.keyFor(ctx, token)
	}, v.parserOptions()...)
	if err != nil {
		debug.Log("jwt", "token rejected", "token", debug.Truncate(cred.Value, 12), "error", err)
		return nil, fmt.Errorf("invalid JWT: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid JWT claims")
	}

	subject := claimString(claims, v.config.SubjectClaim)
	if subject == "" {
		debug.Log("jwt", "token has no subject", "claim", v.config.SubjectClaim)
		return nil, nil
	}

	debug.Trace("jwt", "token verified", "subject", subject, "alg", token.Method.Alg())
	return &auth.Principal{
		Subject: subject,
		Roles:   claimList(claims, v.config.RolesClaim),
	}, nil
}

func (v *Verifier) keyFor(ctx context.Context, token *jwtlib.Token) (any, error) {
	switch token.Method.(type) {
	case *jwtlib.SigningMethodHMAC:
		if v.config.Secret == "" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.Secret), nil

	case *jwtlib.SigningMethodRSA:
		if v.jwks == nil {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid header")
		}
		key, err := v.jwks.getKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, err)
		}
		return key, nil

	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

func (v *Verifier) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods(v.methods),
		jwtlib.WithExpirationRequired(),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(v.config.Audience))
	}
	return opts
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// claimList reads a claim holding either a space-separated string or a JSON
// array of strings.
func claimList(claims jwtlib.MapClaims, key string) []string {
	switch val := claims[key].(type) {
	case string:
		return strings.Fields(val)
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// jwksCache caches RSA public keys fetched from a JWKS endpoint.
type jwksCache struct {
	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	fetchedAt  time.Time
	ttl        time.Duration
	minRefresh time.Duration
	jwksURL    string
	client     *http.Client
	logger     *slog.Logger
}

// getKey returns the key for kid, refreshing the set when it is stale or
// the kid is unknown.
func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	if key, ok := c.keys[kid]; ok && time.Since(c.fetchedAt) < c.ttl {
		c.mu.RUnlock()
		return key, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if key, ok := c.keys[kid]; ok && time.Since(c.fetchedAt) < c.ttl {
		return key, nil
	}

	// Unknown kids must not trigger a fetch per token.
	if !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.minRefresh {
		if key, ok := c.keys[kid]; ok {
			return key, nil
		}
		debug.Log("jwt", "JWKS refresh throttled", "kid", kid)
		return nil, fmt.Errorf("key %q not found in JWKS", kid)
	}

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not found in JWKS", kid)
	}
	return key, nil
}

// refresh must be called with the write lock held.
func (c *jwksCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading JWKS response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := parseRSAPublicKey(jwk)
		if err != nil {
			c.logger.Warn("skipping JWKS key", "kid", jwk.Kid, "error", err)
			continue
		}
		keys[jwk.Kid] = pub
	}

	c.keys = keys
	c.fetchedAt = time.Now()
	debug.Log("jwt", "JWKS cache refreshed", "keys", len(keys), "url", c.jwksURL)
	return nil
}

type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseRSAPublicKey(jwk jwkKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() {
		return nil, errors.New("RSA exponent too large")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}
