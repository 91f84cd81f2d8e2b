// Package cache memoizes responses of pure commands.
//
// Entries are keyed by a fingerprint of the command's binary encoding, so
// two commands with equal kind and payload share an entry. An entry is
// served while it is younger than the cache ttl and recomputed afterwards;
// an expired entry stays in the store until the recomputed result replaces
// it, or the store evicts it on its own. Failed or
// cancelled computations are never stored.
//
// Concurrent misses on the same key may compute twice. The last writer
// wins, and since commands are pure both results are equivalent.
package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/codec"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/observability"
)

// Entry is a cached response and the time it was stored.
type Entry struct {
	Response api.Response
	StoredAt time.Time
}

// Store holds entries by fingerprint. Implementations must be safe for
// concurrent use and replace entries wholesale on Set.
type Store interface {
	// Get returns the entry stored under key. The second result is false
	// when there is none.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set stores e under key. ttl is a hint for stores with their own
	// expiry; the cache checks freshness itself.
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Close() error
}

// ComputeFunc produces the response for a cache miss.
type ComputeFunc func(ctx context.Context) (api.Response, error)

// Cache wraps a Store with ttl-based freshness.
type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used to report store failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New returns a cache over store. A zero ttl disables caching and every
// call computes.
func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the freshness window of entries.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Enabled reports whether lookups reach the store.
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil && c.ttl > 0
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

// GetOrCompute returns the fresh cached response for cmd, or calls compute
// and stores its result. Store failures are logged and treated as misses.
func (c *Cache) GetOrCompute(ctx context.Context, cmd api.Command, compute ComputeFunc) (api.Response, error) {
	if !c.Enabled() {
		return compute(ctx)
	}

	key, err := Fingerprint(cmd)
	if err != nil {
		observability.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("cache fingerprint failed", "kind", cmd.Kind(), "error", err)
		return compute(ctx)
	}

	e, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		observability.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("cache lookup failed", "kind", cmd.Kind(), "error", err)
	case ok && c.fresh(e):
		observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
		debug.Log("cache", "hit", "kind", cmd.Kind(), "key", key)
		return e.Response, nil
	case ok:
		observability.CacheLookupsTotal.WithLabelValues("expired").Inc()
		debug.Log("cache", "expired", "kind", cmd.Kind(), "key", key, "stored_at", e.StoredAt)
	default:
		observability.CacheLookupsTotal.WithLabelValues("miss").Inc()
		debug.Log("cache", "miss", "kind", cmd.Kind(), "key", key)
	}

	resp, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return resp, nil
	}
	if _, failed := resp.(*api.ErrorResponse); failed {
		return resp, nil
	}

	if err := c.store.Set(ctx, key, Entry{Response: resp, StoredAt: c.now()}, c.ttl); err != nil {
		c.logger.Warn("cache store failed", "kind", cmd.Kind(), "error", err)
	}
	return resp, nil
}

// Invalidate removes the entry for cmd, if any.
func (c *Cache) Invalidate(ctx context.Context, cmd api.Command) error {
	if !c.Enabled() {
		return nil
	}
	key, err := Fingerprint(cmd)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, key)
}

func (c *Cache) fresh(e Entry) bool {
	return c.now().Sub(e.StoredAt) < c.ttl
}

// Fingerprint returns the hex encoded 128-bit murmur3 digest of the binary
// encoding of cmd. The encoding covers the kind and the full payload.
func Fingerprint(cmd api.Command) (string, error) {
	b, err := codec.EncodeCommand(cmd)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", cmd.Kind(), err)
	}
	h := murmur3.New128()
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}
