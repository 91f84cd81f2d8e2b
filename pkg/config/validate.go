package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.BinaryPort < 0 || c.Server.BinaryPort > 65535 {
		add("server.binary_port must be between 0 and 65535, got %d", c.Server.BinaryPort)
	}
	if c.Server.BinaryPort != 0 && c.Server.BinaryPort == c.Server.Port {
		add("server.binary_port must differ from server.port; use server.multiplex to share a port")
	}
	if !c.Server.Multiplex && c.Server.BinaryPort == 0 {
		add("server.binary_port is required when server.multiplex is false")
	}
	if c.Server.Workers < 0 {
		add("server.workers must be >= 0, got %d", c.Server.Workers)
	}
	if c.Server.MaxBodySize <= 0 {
		add("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize)
	}
	if c.Server.MaxFrameSize == 0 {
		add("server.max_frame_size must be > 0")
	}

	if c.Estimator.BackendURL == "" {
		add("estimator.backend_url is required")
	}

	switch c.Cache.Backend {
	case "none":
	case "memory", "ristretto", "redis":
		if c.Cache.TTL <= 0 {
			add("cache.ttl must be > 0 when cache.backend is %q", c.Cache.Backend)
		}
	default:
		add("cache.backend must be \"none\", \"memory\", \"ristretto\", or \"redis\", got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "ristretto" && c.Cache.MaxCost <= 0 {
		add("cache.max_cost must be > 0 when cache.backend is \"ristretto\"")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		add("cache.redis.addr is required when cache.backend is \"redis\"")
	}

	if len(c.Middleware) == 0 {
		add("middleware must list at least one interceptor")
	}
	for _, ip := range c.TrustedClients {
		if _, err := netip.ParseAddr(strings.Trim(ip, "[]")); err != nil {
			add("trusted_clients: %q is not a valid IP address", ip)
		}
	}

	switch c.Auth.Type {
	case "none":
	case "basic":
		if len(c.Auth.Users) == 0 {
			add("auth.users is required when auth.type is \"basic\"")
		}
		for name, u := range c.Auth.Users {
			if u.Password == "" {
				add("auth.users.%s.password or password_file is required", name)
			}
		}
	case "token":
		if c.Auth.Token == "" {
			add("auth.token or auth.token_file is required when auth.type is \"token\"")
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			add("auth.jwt.jwks_url is required when auth.type is \"jwt\"")
		}
	default:
		add("auth.type must be \"none\", \"basic\", \"token\", or \"jwt\", got %q", c.Auth.Type)
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		add("rate_limit values must be >= 0")
	}
	for tier, t := range c.RateLimit.Tiers {
		if t.RequestsPerSecond < 0 || t.Burst < 0 {
			add("rate_limit.tiers.%s values must be >= 0", tier)
		}
	}

	switch c.Audit.Type {
	case "none", "memory":
	case "postgres":
		if c.Audit.Postgres.DSN == "" {
			add("audit.postgres.dsn or audit.postgres.dsn_file is required when audit.type is \"postgres\"")
		}
	case "sqlite":
		if strings.TrimSpace(c.Audit.SQLite.Path) == "" {
			add("audit.sqlite.path is required when audit.type is \"sqlite\"")
		}
	default:
		add("audit.type must be \"none\", \"memory\", \"postgres\", or \"sqlite\", got %q", c.Audit.Type)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		add("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		add("observability.metrics.path must start with /, got %q", c.Observability.Metrics.Path)
	}
	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		add("mcp.path must start with /, got %q", c.MCP.Path)
	}

	return errors.Join(errs...)
}
