package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/auth"
	"github.com/rhuss/modelserve/pkg/transport"
)

// appendTimeout bounds a single sink write. The write runs after the
// request context may already be cancelled.
const appendTimeout = 5 * time.Second

// Interceptor returns middleware that appends a record to sink for every
// request passing through it. Placed outside the auth interceptor it also
// records rejected requests; the subject of an accepted request is picked up
// either way.
func Interceptor(sink Sink, logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next transport.Dispatcher) transport.Dispatcher {
		return transport.DispatcherFunc(func(ctx context.Context, req *transport.Request) (api.Response, error) {
			start := time.Now()
			inner, identity := auth.WithIdentitySlot(ctx)
			resp, err := next.Dispatch(inner, req)

			rec := Record{
				ID:         api.NewRecordID(),
				Time:       start.UTC(),
				RequestID:  transport.RequestIDFromContext(ctx),
				Kind:       req.Command.Kind(),
				Protocol:   string(req.Protocol),
				RemoteAddr: req.RemoteAddr,
				Outcome:    outcome(resp, err),
				Duration:   time.Since(start),
			}
			if id := auth.IdentityFromContext(ctx); id != nil {
				rec.Subject = id.Subject
			} else if id := identity(); id != nil {
				rec.Subject = id.Subject
			}

			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
			defer cancel()
			if aerr := sink.Append(wctx, rec); aerr != nil {
				logger.Error("audit append failed", "request_id", rec.RequestID, "error", aerr)
			}
			return resp, err
		})
	}
}

func outcome(resp api.Response, err error) string {
	if err != nil {
		return string(api.TypeOf(err))
	}
	if er, ok := resp.(*api.ErrorResponse); ok {
		return string(er.Type())
	}
	return OutcomeOK
}
