// Package apikey verifies static API keys presented as bearer tokens.
// Keys are stored as SHA-256 hashes and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"maps"
	"slices"

	"github.com/streetball/api/pkg/auth"
)

// Key is the configuration form of an API key.
type Key struct {
	Key      string
	Subject  string
	Roles    []string
	Metadata map[string]string
}

type entry struct {
	hash      [32]byte
	principal auth.Principal
}

// Verifier resolves API keys to principals.
type Verifier struct {
	keys []entry
}

// New hashes the given keys. Plaintext keys are not retained.
func New(keys []Key) *Verifier {
	v := &Verifier{keys: make([]entry, 0, len(keys))}
	for _, k := range keys {
		v.keys = append(v.keys, entry{
			hash: sha256.Sum256([]byte(k.Key)),
			principal: auth.Principal{
				Subject:  k.Subject,
				Roles:    slices.Clone(k.Roles),
				Metadata: maps.Clone(k.Metadata),
			},
		})
	}
	return v
}

// Strategy returns the bearer-token strategy backed by this verifier.
func (v *Verifier) Strategy() auth.Strategy {
	return auth.Strategy{Name: "apikey", Extractor: auth.BearerExtractor(), Verifier: v}
}

// Verify returns a copy of the principal for a known key and nil otherwise.
// Every stored hash is compared so timing does not depend on the match position.
func (v *Verifier) Verify(_ context.Context, cred auth.Credential) (*auth.Principal, error) {
	sum := sha256.Sum256([]byte(cred.Value))

	var found *entry
	for i := range v.keys {
		if subtle.ConstantTimeCompare(sum[:], v.keys[i].hash[:]) == 1 {
			found = &v.keys[i]
		}
	}
	if found == nil {
		return nil, nil
	}

	p := found.principal
	p.Roles = slices.Clone(p.Roles)
	p.Metadata = maps.Clone(p.Metadata)
	return &p, nil
}
