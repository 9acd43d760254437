// Package session verifies cookie sessions stored in Redis.
//
// A session is a JSON record keyed by an opaque id under a configurable key
// prefix. Expiry is delegated to Redis key TTLs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/streetball/api/pkg/auth"
	"github.com/streetball/api/pkg/debug"
)

// DefaultCookieName is the cookie carrying the session id.
const DefaultCookieName = "sid"

// ErrNotFound is returned by Get when the session does not exist or expired.
var ErrNotFound = errors.New("session not found")

// Session is the stored session record.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	Roles     []string  `json:"roles,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps sessions in Redis.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates a session store. An empty prefix defaults to "session:",
// a non-positive ttl to 24 hours.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "session:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(id string) string { return s.prefix + id }

// Create stores a new session for userID and returns it with a fresh id.
func (s *Store) Create(ctx context.Context, userID string, roles []string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Roles:     roles,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return sess, nil
}

// Get loads a session. It returns ErrNotFound for unknown or expired ids.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	sess.ID = id
	return &sess, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Verifier resolves session cookies to principals.
type Verifier struct {
	store *Store
}

// NewVerifier creates a session verifier.
func NewVerifier(store *Store) *Verifier {
	return &Verifier{store: store}
}

// Strategy returns the cookie strategy backed by this verifier.
func (v *Verifier) Strategy(cookieName string) auth.Strategy {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return auth.Strategy{Name: "session", Extractor: auth.CookieExtractor(cookieName), Verifier: v}
}

// Verify returns nil for unknown sessions and an error when Redis fails.
func (v *Verifier) Verify(ctx context.Context, cred auth.Credential) (*auth.Principal, error) {
	sess, err := v.store.Get(ctx, cred.Value)
	if errors.Is(err, ErrNotFound) {
		debug.Log("session", "session not found", "session_id", debug.Truncate(cred.Value, 8))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	debug.Trace("session", "session resolved", "session_id", sess.ID, "user_id", sess.UserID)
	return &auth.Principal{
		Subject:  sess.UserID,
		Roles:    sess.Roles,
		Metadata: map[string]string{"session_id": sess.ID},
	}, nil
}
