package auth

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/observability"
	"github.com/rhuss/modelserve/pkg/transport"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// TokenBucketLimiter keeps one token bucket per subject and tier. Buckets
// idle for longer than the idle timeout are dropped.
type TokenBucketLimiter struct {
	tiers    map[string]TierConfig
	fallback TierConfig

	mu      sync.Mutex
	buckets map[string]*bucket
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a limiter with per-tier configuration.
// Tiers without an entry use fallback. A non-positive rate disables
// limiting for the tier.
func NewTokenBucketLimiter(tiers map[string]TierConfig, fallback TierConfig) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		tiers:    tiers,
		fallback: fallback,
		buckets:  make(map[string]*bucket),
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow takes one token from the caller's bucket.
func (l *TokenBucketLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}

	cfg := l.fallback
	if tc, ok := l.tiers[tier]; ok {
		cfg = tc
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	key := identity.Subject + ":" + tier
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		l.sweep(now)
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst), lastSeen: now}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	if !b.limiter.AllowN(now, 1) {
		return &api.RateLimitError{Subject: identity.Subject}
	}
	return nil
}

// sweep drops idle buckets. Caller must hold mu.
func (l *TokenBucketLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, k)
		}
	}
}

// RateLimit returns middleware enforcing limiter. Authenticated callers are
// limited by identity; anonymous requests are keyed by remote IP.
func RateLimit(limiter RateLimiter, logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next transport.Dispatcher) transport.Dispatcher {
		return transport.DispatcherFunc(func(ctx context.Context, req *transport.Request) (api.Response, error) {
			id := IdentityFromContext(ctx)
			if id == nil || id.Subject == Anonymous().Subject {
				id = &Identity{Subject: hostOf(req.RemoteAddr), ServiceTier: "default"}
			}

			if err := limiter.Allow(ctx, id); err != nil {
				logger.Warn("rate limit exceeded",
					"subject", id.Subject,
					"tier", id.ServiceTier,
				)
				observability.RateLimitRejectedTotal.WithLabelValues(id.ServiceTier).Inc()
				return nil, err
			}
			return next.Dispatch(ctx, req)
		})
	}
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
