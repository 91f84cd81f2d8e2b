// Package auth authenticates callers and enforces per-caller limits for all
// front ends.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Everything here is transport middleware operating on the credentials and
// remote address of a transport.Request, so the REST, binary, and MCP front
// ends are protected the same way.
package auth
