// Package noop provides an authenticator that accepts every request. It
// backs the "none" auth type.
package noop

import (
	"context"

	"github.com/rhuss/modelserve/pkg/auth"
	"github.com/rhuss/modelserve/pkg/transport"
)

// Authenticator always votes Yes with the anonymous identity. Credentials
// are ignored.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ transport.Credentials) auth.AuthResult {
	return auth.AuthResult{Decision: auth.Yes, Identity: auth.Anonymous()}
}
