// Package audit records one [Record] per request handled by the server.
//
// A [Sink] persists records. Adapters live in subpackages: memory (bounded,
// for development and tests), postgres, and sqlite. The [Interceptor]
// middleware builds the record after the request has been handled; a
// failing sink is logged and never fails the request.
package audit
