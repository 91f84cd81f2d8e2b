// Package basic provides an HTTP Basic credentials authenticator backed by
// a static user table.
package basic

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"github.com/rhuss/modelserve/pkg/auth"
	"github.com/rhuss/modelserve/pkg/transport"
)

var errBadCredentials = errors.New("unknown user or wrong password")

// User is the configuration of a single account.
type User struct {
	Password    string
	ServiceTier string
	Scopes      []string
}

type account struct {
	hash  [32]byte
	tier  string
	scope []string
}

// Authenticator checks basic credentials against the user table.
type Authenticator struct {
	users map[string]account
	// dummy is compared against for unknown users so lookups take the
	// same time whether or not the user exists.
	dummy [32]byte
}

// New creates an authenticator for users, keyed by user name. Passwords
// are hashed immediately.
func New(users map[string]User) *Authenticator {
	a := &Authenticator{
		users: make(map[string]account, len(users)),
		dummy: sha256.Sum256([]byte("modelserve")),
	}
	for name, u := range users {
		tier := u.ServiceTier
		if tier == "" {
			tier = "default"
		}
		a.users[name] = account{
			hash:  sha256.Sum256([]byte(u.Password)),
			tier:  tier,
			scope: append([]string(nil), u.Scopes...),
		}
	}
	return a
}

// Authenticate abstains unless the scheme is basic.
func (a *Authenticator) Authenticate(_ context.Context, creds transport.Credentials) auth.AuthResult {
	if creds.Scheme != "basic" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	sum := sha256.Sum256([]byte(creds.Password))
	acct, known := a.users[creds.Username]
	want := a.dummy
	if known {
		want = acct.hash
	}
	if subtle.ConstantTimeCompare(sum[:], want[:]) != 1 || !known || creds.Username == "" {
		return auth.AuthResult{Decision: auth.No, Err: errBadCredentials}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     creds.Username,
			ServiceTier: acct.tier,
			Scopes:      append([]string(nil), acct.scope...),
		},
	}
}
