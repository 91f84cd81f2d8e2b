package auth

import (
	"context"
	"log/slog"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/observability"
	"github.com/rhuss/modelserve/pkg/transport"
)

// Interceptor returns middleware that authenticates every request with
// chain and stores the identity in the context. Rejected requests never
// reach the handlers.
func Interceptor(chain *AuthChain, logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next transport.Dispatcher) transport.Dispatcher {
		return transport.DispatcherFunc(func(ctx context.Context, req *transport.Request) (api.Response, error) {
			result := chain.Authenticate(ctx, req.Credentials)

			if result.Decision != Yes || result.Identity == nil {
				logger.Warn("authentication failed",
					"kind", req.Command.Kind(),
					"protocol", req.Protocol,
					"remote_addr", req.RemoteAddr,
					"error", result.Err,
				)
				observability.AuthRejectedTotal.WithLabelValues(string(api.ErrorTypeUnauthenticated)).Inc()
				if req.Credentials.Empty() {
					return nil, errMissingCredentials
				}
				return nil, errInvalidCredentials
			}

			if result.Identity.Subject == "" {
				logger.Error("authenticator returned identity with empty subject")
				return nil, api.NewServerError("internal authentication error")
			}

			logger.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"remote_addr", req.RemoteAddr,
			)

			return next.Dispatch(SetIdentity(ctx, result.Identity), req)
		})
	}
}
