package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
)

// Logging returns middleware that writes one access log entry per request
// with the request ID, command kind, protocol, remote address, duration,
// and outcome. Client errors are logged at WARN, server errors at ERROR.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Dispatcher) Dispatcher {
		return DispatcherFunc(func(ctx context.Context, req *Request) (api.Response, error) {
			start := time.Now()

			resp, err := next.Dispatch(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("kind", string(req.Command.Kind())),
				slog.String("protocol", string(req.Protocol)),
				slog.String("remote_addr", req.RemoteAddr),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs,
					slog.String("error_type", string(api.TypeOf(err))),
					slog.String("error", err.Error()),
				)
				level := slog.LevelWarn
				if api.StatusCode(err) >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				logger.LogAttrs(ctx, level, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return resp, err
		})
	}
}
