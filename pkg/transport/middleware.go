package transport

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rhuss/modelserve/pkg/api"
)

// Middleware wraps a Dispatcher to add cross-cutting behavior.
// Middleware is applied in order: the first middleware in the chain is
// the outermost wrapper (executes first on the way in, last on the way out).
type Middleware func(Dispatcher) Dispatcher

// Chain composes multiple middleware into a single middleware.
// Middleware are applied in order: Chain(a, b, c) produces a(b(c(handler))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next Dispatcher) Dispatcher {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Interceptors maps configuration names to middleware.
type Interceptors map[string]Middleware

// Names returns the registered names in sorted order.
func (in Interceptors) Names() []string {
	names := make([]string, 0, len(in))
	for n := range in {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build resolves names against in and chains the result in the given
// order. An unknown name is a ConfigurationError.
func Build(names []string, in Interceptors) (Middleware, error) {
	mws := make([]Middleware, 0, len(names))
	for _, name := range names {
		mw, ok := in[name]
		if !ok || mw == nil {
			return nil, &api.ConfigurationError{
				Field:   "middleware",
				Message: fmt.Sprintf("unknown middleware %q (available: %s)", name, strings.Join(in.Names(), ", ")),
			}
		}
		mws = append(mws, mw)
	}
	return Chain(mws...), nil
}

// requestIDKeyType is the context key type for request IDs.
type requestIDKeyType struct{}

// requestIDKey is the context key for storing and retrieving request IDs.
var requestIDKey = requestIDKeyType{}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
