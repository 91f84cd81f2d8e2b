package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/rhuss/modelserve/pkg/api"
)

// RequestIDHeader is the header front ends read an incoming request ID from.
const RequestIDHeader = "X-Request-Id"

// RequestID returns middleware that assigns a unique request ID to each
// request. An ID already in the context, or sent by the client in the
// X-Request-ID header, is kept.
func RequestID() Middleware {
	return func(next Dispatcher) Dispatcher {
		return DispatcherFunc(func(ctx context.Context, req *Request) (api.Response, error) {
			if RequestIDFromContext(ctx) == "" {
				id := req.Header[RequestIDHeader]
				if id == "" {
					id = uuid.NewString()
				}
				ctx = ContextWithRequestID(ctx, id)
			}
			return next.Dispatch(ctx, req)
		})
	}
}
