package auth

import (
	"net/http"
	"strings"
)

// CredentialSource identifies where in the request a credential was found.
type CredentialSource string

const (
	SourceBearer CredentialSource = "bearer"
	SourceCookie CredentialSource = "cookie"
)

// Credential is the opaque proof presented by a caller.
type Credential struct {
	Source CredentialSource
	Value  string
}

// Extractor pulls a credential out of a request. The boolean is false when
// the request carries no credential of this kind.
type Extractor interface {
	Extract(r *http.Request) (Credential, bool)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(r *http.Request) (Credential, bool)

func (f ExtractorFunc) Extract(r *http.Request) (Credential, bool) { return f(r) }

// BearerExtractor reads "Authorization: Bearer <token>". A Bearer header with
// an empty token, including a bare "Bearer" as it arrives once net/http trims
// the trailing space, counts as present so the verifier can reject it.
func BearerExtractor() Extractor {
	return ExtractorFunc(func(r *http.Request) (Credential, bool) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.EqualFold(header, "Bearer") {
			return Credential{Source: SourceBearer}, true
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return Credential{}, false
		}
		return Credential{Source: SourceBearer, Value: strings.TrimSpace(token)}, true
	})
}

// CookieExtractor reads the named cookie. Empty cookie values are treated as absent.
func CookieExtractor(name string) Extractor {
	return ExtractorFunc(func(r *http.Request) (Credential, bool) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return Credential{}, false
		}
		return Credential{Source: SourceCookie, Value: c.Value}, true
	})
}
