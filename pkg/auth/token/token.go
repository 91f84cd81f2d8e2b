// Package token provides a bearer token authenticator that validates
// tokens against a static set using SHA-256 hashing and constant-time
// comparison.
package token

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"github.com/rhuss/modelserve/pkg/auth"
	"github.com/rhuss/modelserve/pkg/transport"
)

var (
	errEmptyToken   = errors.New("empty bearer token")
	errUnknownToken = errors.New("unknown bearer token")
)

// Entry maps a raw token to the identity it grants.
type Entry struct {
	Token    string
	Identity auth.Identity
}

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against a static token set.
type Authenticator struct {
	keys []keyEntry
}

// New creates a token authenticator. Tokens are hashed immediately; the
// plaintext is not kept.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Token)),
			identity: e.Identity,
		})
	}
	return a
}

// Shared creates an authenticator for a single shared token. Callers
// presenting it are identified as subject.
func Shared(token, subject string) *Authenticator {
	return New([]Entry{{
		Token:    token,
		Identity: auth.Identity{Subject: subject, ServiceTier: "default"},
	}})
}

// Authenticate returns Yes for a known bearer token, No for an unknown or
// empty one, and Abstain for any other scheme.
func (a *Authenticator) Authenticate(_ context.Context, creds transport.Credentials) auth.AuthResult {
	if creds.Scheme != "bearer" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if creds.Token == "" {
		return auth.AuthResult{Decision: auth.No, Err: errEmptyToken}
	}

	sum := sha256.Sum256([]byte(creds.Token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], entry.hash[:]) == 1 {
			id := entry.identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.AuthResult{Decision: auth.No, Err: errUnknownToken}
}
