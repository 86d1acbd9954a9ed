// Package auth implements bearer-key authentication for storefront admin routes.
// Keys come from configuration and are held only as SHA-256 hashes.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	storefront "github.com/eugener/storefront/internal"
)

// subjectLen is how much of a key is kept as the caller's subject for logs.
const subjectLen = 12

type adminKey struct {
	hash    []byte
	subject string
}

// APIKeyAuth authenticates requests carrying one of the configured admin
// keys with the "sf_" prefix.
type APIKeyAuth struct {
	keys []adminKey
}

// NewAPIKeyAuth hashes the plaintext keys. Keys without the "sf_" prefix
// are rejected so a typo cannot silently disable a credential.
func NewAPIKeyAuth(plaintext []string) (*APIKeyAuth, error) {
	a := &APIKeyAuth{keys: make([]adminKey, 0, len(plaintext))}
	for _, raw := range plaintext {
		if !strings.HasPrefix(raw, storefront.APIKeyPrefix) {
			return nil, errors.New("auth: admin keys must start with " + storefront.APIKeyPrefix)
		}
		a.keys = append(a.keys, adminKey{
			hash:    []byte(storefront.HashKey(raw)),
			subject: raw[:min(subjectLen, len(raw))],
		})
	}
	return a, nil
}

// Authenticate extracts a Bearer token from the Authorization header and
// matches it against the configured keys.
func (a *APIKeyAuth) Authenticate(_ context.Context, r *http.Request) (*storefront.Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" || !strings.HasPrefix(raw, storefront.APIKeyPrefix) {
		return nil, storefront.ErrUnauthorized
	}

	hash := []byte(storefront.HashKey(raw))
	var match *adminKey
	// Compare against every key so timing does not reveal which one matched.
	for i := range a.keys {
		if subtle.ConstantTimeCompare(a.keys[i].hash, hash) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return nil, storefront.ErrUnauthorized
	}
	return &storefront.Identity{Subject: match.subject, Role: "admin"}, nil
}
