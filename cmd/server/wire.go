package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/modelserve/pkg/audit"
	auditmemory "github.com/rhuss/modelserve/pkg/audit/memory"
	"github.com/rhuss/modelserve/pkg/audit/postgres"
	"github.com/rhuss/modelserve/pkg/audit/sqlite"
	"github.com/rhuss/modelserve/pkg/auth"
	"github.com/rhuss/modelserve/pkg/auth/basic"
	"github.com/rhuss/modelserve/pkg/auth/jwt"
	"github.com/rhuss/modelserve/pkg/auth/noop"
	"github.com/rhuss/modelserve/pkg/auth/token"
	"github.com/rhuss/modelserve/pkg/cache"
	cachememory "github.com/rhuss/modelserve/pkg/cache/memory"
	cacheredis "github.com/rhuss/modelserve/pkg/cache/redis"
	"github.com/rhuss/modelserve/pkg/cache/ristretto"
	"github.com/rhuss/modelserve/pkg/config"
	"github.com/rhuss/modelserve/pkg/transport"
)

// buildCache creates the prediction cache. It returns nil when caching
// is disabled.
func buildCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*cache.Cache, error) {
	var store cache.Store
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		store = cachememory.New(cfg.MaxEntries)
	case "ristretto":
		s, err := ristretto.New(ristretto.Config{MaxCost: cfg.MaxCost})
		if err != nil {
			return nil, err
		}
		store = s
	case "redis":
		s, err := cacheredis.New(ctx, cacheredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	logger.Info("prediction cache enabled", "backend", cfg.Backend, "ttl", cfg.TTL)
	return cache.New(store, cfg.TTL, cache.WithLogger(logger)), nil
}

// buildAuthChain creates the authenticator chain for the configured type.
func buildAuthChain(cfg config.AuthConfig) (*auth.AuthChain, error) {
	switch cfg.Type {
	case "", "none":
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}, nil
	case "basic":
		users := make(map[string]basic.User, len(cfg.Users))
		for name, u := range cfg.Users {
			users[name] = basic.User{Password: u.Password, ServiceTier: u.ServiceTier}
		}
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{basic.New(users)},
			DefaultDecision: auth.No,
		}, nil
	case "token":
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{token.Shared(cfg.Token, "token")},
			DefaultDecision: auth.No,
		}, nil
	case "jwt":
		return &auth.AuthChain{
			Authenticators: []auth.Authenticator{jwt.New(jwt.Config{
				Issuer:   cfg.JWT.Issuer,
				Audience: cfg.JWT.Audience,
				JWKSURL:  cfg.JWT.JWKSURL,
			})},
			DefaultDecision: auth.No,
		}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

// buildRateLimiter returns nil when no limit is configured.
func buildRateLimiter(cfg config.RateLimitConfig) auth.RateLimiter {
	if cfg.RequestsPerSecond <= 0 && len(cfg.Tiers) == 0 {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(cfg.Tiers))
	for name, t := range cfg.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerSecond: t.RequestsPerSecond, Burst: t.Burst}
	}
	return auth.NewTokenBucketLimiter(tiers, auth.TierConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
}

// buildAuditSink opens the configured sink. It returns nil when auditing
// is disabled.
func buildAuditSink(ctx context.Context, cfg config.AuditConfig) (audit.Sink, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return auditmemory.New(cfg.MaxSize), nil
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Type)
	}
}

// buildInterceptors registers every middleware the configuration can name.
func buildInterceptors(cfg *config.Config, sink audit.Sink, logger *slog.Logger) (transport.Interceptors, error) {
	chain, err := buildAuthChain(cfg.Auth)
	if err != nil {
		return nil, err
	}
	authMW := auth.Interceptor(chain, logger)
	if limiter := buildRateLimiter(cfg.RateLimit); limiter != nil {
		authMW = transport.Chain(authMW, auth.RateLimit(limiter, logger))
	}

	ips := cfg.TrustedClients
	if len(ips) == 0 {
		ips = auth.DefaultTrustedClients
	}
	trusted, err := auth.TrustedClients(ips, logger)
	if err != nil {
		return nil, err
	}

	var auditMW transport.Middleware = func(next transport.Dispatcher) transport.Dispatcher { return next }
	if sink != nil {
		auditMW = audit.Interceptor(sink, logger)
	}

	return transport.Interceptors{
		"recovery":        transport.Recovery(logger),
		"request_id":      transport.RequestID(),
		"logging":         transport.Logging(logger),
		"metrics":         transport.Metrics(),
		"trusted_clients": trusted,
		"auth":            authMW,
		"audit":           auditMW,
		"timeout":         transport.Timeout(cfg.Server.RequestTimeout),
	}, nil
}
