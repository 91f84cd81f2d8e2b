package auth

import (
	"context"
	"sync/atomic"
)

// identityKey is a private type for the identity context key.
type identityKey struct{}

// slotKey is the context key of an identity slot.
type slotKey struct{}

// SetIdentity stores the authenticated identity in the context and in the
// enclosing identity slot, if any.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	if slot, ok := ctx.Value(slotKey{}).(*atomic.Pointer[Identity]); ok {
		slot.Store(id)
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity.
// Returns nil if no identity is set.
func IdentityFromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return v
	}
	return nil
}

// WithIdentitySlot returns a context whose descendants report the identity
// they authenticate back through the returned function. Middleware running
// outside the auth interceptor uses it to learn the caller once the
// request completes.
func WithIdentitySlot(ctx context.Context) (context.Context, func() *Identity) {
	slot := new(atomic.Pointer[Identity])
	return context.WithValue(ctx, slotKey{}, slot), slot.Load
}
