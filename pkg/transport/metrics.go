package transport

import (
	"context"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/observability"
)

// Metrics returns middleware that counts commands by kind, protocol, and
// outcome, and records their duration.
func Metrics() Middleware {
	return func(next Dispatcher) Dispatcher {
		return DispatcherFunc(func(ctx context.Context, req *Request) (api.Response, error) {
			start := time.Now()
			resp, err := next.Dispatch(ctx, req)

			kind := string(req.Command.Kind())
			outcome := "ok"
			if err != nil {
				outcome = string(api.TypeOf(err))
			}
			observability.CommandsTotal.WithLabelValues(kind, string(req.Protocol), outcome).Inc()
			observability.CommandDuration.WithLabelValues(kind, string(req.Protocol)).Observe(time.Since(start).Seconds())
			return resp, err
		})
	}
}
