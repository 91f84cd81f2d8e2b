package transport

import (
	"context"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
)

// Timeout returns middleware that bounds each request by d. A non-positive
// d leaves the context unchanged.
func Timeout(d time.Duration) Middleware {
	return func(next Dispatcher) Dispatcher {
		if d <= 0 {
			return next
		}
		return DispatcherFunc(func(ctx context.Context, req *Request) (api.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Dispatch(ctx, req)
		})
	}
}
