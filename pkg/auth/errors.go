package auth

import "github.com/rhuss/modelserve/pkg/api"

// Errors reported to callers. Authenticator specific details stay in the
// server log.
var (
	errMissingCredentials = &api.AuthenticationError{Message: "authentication required"}
	errInvalidCredentials = &api.AuthenticationError{Message: "invalid credentials"}
)
