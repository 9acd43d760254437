// Package memory provides an in-memory user store for development and tests.
// Users are lost when the process restarts.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/streetball/api/pkg/user"
)

// Store is an in-memory user.Store.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*user.User
	byEmail map[string]string
}

var _ user.Store = (*Store)(nil)

// New creates a store seeded with the given users. Seeds are prepared like
// CreateUser input; seeding fails on duplicates.
func New(seed ...*user.User) (*Store, error) {
	s := &Store{
		byID:    make(map[string]*user.User),
		byEmail: make(map[string]string),
	}
	for _, u := range seed {
		if err := s.CreateUser(context.Background(), u); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetUser returns a copy of the user with the given id.
func (s *Store) GetUser(_ context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u.Clone(), nil
}

// ListUsers returns all users ordered by creation time, then id.
func (s *Store) ListUsers(_ context.Context) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*user.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateUser stores u after filling in defaults. The caller's value is
// updated with the generated fields.
func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	if err := user.Prepare(u); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[u.ID]; exists {
		return user.ErrConflict
	}
	if _, exists := s.byEmail[u.Email]; exists {
		return user.ErrConflict
	}

	s.byID[u.ID] = u.Clone()
	s.byEmail[u.Email] = u.ID
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
