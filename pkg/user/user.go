// Package user defines the user records the auth gate resolves identities
// against, and the Store interface implemented by the memory and postgres
// adapters.
package user

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/streetball/api/pkg/auth"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrConflict is returned when a user with the same id or email exists.
	ErrConflict = errors.New("user already exists")
)

// DefaultRole is assigned to users created without roles.
const DefaultRole = "user"

// User is a stored account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence interface for users.
type Store interface {
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, u *User) error
	Ping(ctx context.Context) error
	Close() error
}

// Prepare fills in defaults for a user about to be created: a random id,
// normalized roles falling back to DefaultRole, and the creation time.
func Prepare(u *User) error {
	if u.Email == "" {
		return fmt.Errorf("user email is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Roles = auth.NormalizeRoles(u.Roles)
	if len(u.Roles) == 0 {
		u.Roles = []string{DefaultRole}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}

type lookup struct {
	store Store
}

// Lookup adapts a Store to auth.UserLookup. Unknown users resolve to nil.
func Lookup(store Store) auth.UserLookup {
	return lookup{store: store}
}

func (l lookup) LookupUser(ctx context.Context, subject string) (*auth.Principal, error) {
	u, err := l.store.GetUser(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", subject, err)
	}
	return &auth.Principal{
		Subject:  u.ID,
		Roles:    u.Roles,
		Metadata: map[string]string{"email": u.Email},
	}, nil
}
