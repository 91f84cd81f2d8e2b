// Package transport defines the protocol-neutral request pipeline shared by
// the REST, binary, and MCP front ends.
//
// A front end decodes its wire format into a Request carrying an api.Command
// and hands it to a Dispatcher. The innermost Dispatcher, built by Terminal,
// forwards the command to the command bus.
//
// # Middleware
//
// Middleware wraps a Dispatcher to add cross-cutting behavior. Chain folds
// an ordered list once at startup; the first middleware is the outermost.
// A middleware may short-circuit by returning without calling next. Build
// resolves the configured list of middleware names against a set of
// registered Interceptors, so the order is a deployment decision.
//
// Built-in middleware provides panic recovery, request ID assignment,
// access logging via log/slog, Prometheus metrics, and per-request
// timeouts. Authentication, trusted clients, rate limiting, and auditing
// live in pkg/auth and pkg/audit and plug into the same chain.
package transport
