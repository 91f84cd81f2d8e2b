package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/observability"
	"github.com/rhuss/modelserve/pkg/transport"
)

// DefaultTrustedClients is used when trusted clients are enabled without
// an explicit list.
var DefaultTrustedClients = []string{"127.0.0.1"}

// TrustedClients returns middleware that rejects requests whose remote IP
// is not in ips. Every entry must be an IPv4 or IPv6 literal and at least
// one is required. Addresses are compared after stripping the port.
func TrustedClients(ips []string, logger *slog.Logger) (transport.Middleware, error) {
	if len(ips) == 0 {
		return nil, &api.ConfigurationError{Field: "trusted_clients", Message: "at least one trusted client is required"}
	}
	trusted := make(map[netip.Addr]struct{}, len(ips))
	for _, ip := range ips {
		addr, err := netip.ParseAddr(strings.Trim(strings.TrimSpace(ip), "[]"))
		if err != nil {
			return nil, &api.ConfigurationError{
				Field:   "trusted_clients",
				Message: fmt.Sprintf("%q is not a valid IP address", ip),
			}
		}
		trusted[addr] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next transport.Dispatcher) transport.Dispatcher {
		return transport.DispatcherFunc(func(ctx context.Context, req *transport.Request) (api.Response, error) {
			addr, ok := remoteIP(req.RemoteAddr)
			if ok {
				_, ok = trusted[addr]
			}
			if !ok {
				logger.Warn("untrusted client", "remote_addr", req.RemoteAddr, "kind", req.Command.Kind())
				observability.AuthRejectedTotal.WithLabelValues(string(api.ErrorTypeUntrustedClient)).Inc()
				return nil, &api.UntrustedClientError{Addr: hostOf(req.RemoteAddr)}
			}
			return next.Dispatch(ctx, req)
		})
	}, nil
}

// remoteIP extracts the IP of a host:port, [v6]:port, or bare address.
// IPv6 zones are dropped. IPv4-mapped IPv6 addresses stay IPv6.
func remoteIP(remote string) (netip.Addr, bool) {
	host := strings.Trim(hostOf(remote), "[]")
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.WithZone(""), true
}
