package noop

import (
	"context"
	"testing"

	"github.com/rhuss/modelserve/pkg/auth"
	"github.com/rhuss/modelserve/pkg/transport"
)

func TestAcceptsEverything(t *testing.T) {
	a := &Authenticator{}
	for _, creds := range []transport.Credentials{{}, {Scheme: "bearer", Token: "junk"}} {
		result := a.Authenticate(context.Background(), creds)
		if result.Decision != auth.Yes || result.Identity.Subject != "anonymous" {
			t.Errorf("Authenticate(%+v) = %+v", creds, result)
		}
	}
}
