package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/modelserve/pkg/api"
)

// Recovery returns middleware that catches panics further down the chain
// and converts them to server errors. The connection stays usable.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Dispatcher) Dispatcher {
		return DispatcherFunc(func(ctx context.Context, req *Request) (resp api.Response, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic while handling command",
						"request_id", RequestIDFromContext(ctx),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					resp = nil
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Dispatch(ctx, req)
		})
	}
}
