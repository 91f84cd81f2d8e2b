// Package bus routes commands to the handler registered for their kind.
//
// The registry is fixed at construction. Lookups are exact matches on
// api.Kind; there is no fallback or hierarchy.
package bus

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/observability"
)

// Handler answers commands of one kind.
type Handler interface {
	Handle(ctx context.Context, cmd api.Command) (api.Response, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, cmd api.Command) (api.Response, error)

// Handle calls f(ctx, cmd).
func (f HandlerFunc) Handle(ctx context.Context, cmd api.Command) (api.Response, error) {
	return f(ctx, cmd)
}

// Bus dispatches commands to handlers. It is safe for concurrent use.
type Bus struct {
	handlers map[api.Kind]Handler
}

// New validates mapping and returns a bus serving it. Every key must be a
// known command kind and every handler non-nil. The mapping is copied.
func New(mapping map[api.Kind]Handler) (*Bus, error) {
	handlers := make(map[api.Kind]Handler, len(mapping))
	for kind, h := range mapping {
		if !kind.IsCommand() {
			return nil, &api.ConfigurationError{
				Field:   "handlers",
				Message: fmt.Sprintf("%q is not a command kind", kind),
			}
		}
		if h == nil {
			return nil, &api.ConfigurationError{
				Field:   "handlers",
				Message: fmt.Sprintf("handler for %s is nil", kind),
			}
		}
		handlers[kind] = h
	}
	return &Bus{handlers: handlers}, nil
}

// Dispatch hands cmd to the handler registered for its kind.
func (b *Bus) Dispatch(ctx context.Context, cmd api.Command) (resp api.Response, err error) {
	if cmd == nil {
		return nil, api.NewInvalidRequestError("command", "command is required")
	}
	kind := cmd.Kind()

	h, ok := b.handlers[kind]
	if !ok {
		observability.DispatchTotal.WithLabelValues(string(kind), "not_found").Inc()
		debug.Log("bus", "no handler", "kind", kind)
		return nil, &api.HandlerNotFoundError{Kind: kind}
	}

	ctx, span := observability.StartSpan(ctx, "bus.dispatch",
		attribute.String("modelserve.command.kind", string(kind)))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(api.TypeOf(err))
		}
		observability.DispatchTotal.WithLabelValues(string(kind), outcome).Inc()
		observability.EndSpan(span, err)
	}()

	debug.Trace("bus", "dispatch", "kind", kind)
	return h.Handle(ctx, cmd)
}

// Kinds returns the registered command kinds in sorted order.
func (b *Bus) Kinds() []api.Kind {
	out := make([]api.Kind, 0, len(b.handlers))
	for k := range b.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Handles reports whether a handler is registered for kind.
func (b *Bus) Handles(kind api.Kind) bool {
	_, ok := b.handlers[kind]
	return ok
}
