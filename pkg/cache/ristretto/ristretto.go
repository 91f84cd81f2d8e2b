// Package ristretto provides a cost-bounded cache store backed by
// dgraph-io/ristretto.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/rhuss/modelserve/pkg/cache"
)

// Config sizes the store. MaxCost bounds the total cost of admitted
// entries; each entry costs 1 unless Cost is set.
type Config struct {
	MaxCost int64
	Cost    func(cache.Entry) int64
}

// Store keeps entries in a ristretto cache. Admission is probabilistic, so
// a Set may be dropped; the cache treats that as a later miss.
type Store struct {
	cache *ristretto.Cache
	cost  func(cache.Entry) int64
}

var _ cache.Store = (*Store)(nil)

// New creates a store. MaxCost must be positive.
func New(cfg Config) (*Store, error) {
	if cfg.MaxCost <= 0 {
		return nil, fmt.Errorf("ristretto: max cost must be positive, got %d", cfg.MaxCost)
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * cfg.MaxCost,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	cost := cfg.Cost
	if cost == nil {
		cost = func(cache.Entry) int64 { return 1 }
	}
	return &Store{cache: c, cost: cost}, nil
}

func (s *Store) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return cache.Entry{}, false, nil
	}
	e, ok := v.(cache.Entry)
	return e, ok, nil
}

// Set stores e with ttl as ristretto's own expiry, so stale entries are
// also reclaimed without being read.
func (s *Store) Set(_ context.Context, key string, e cache.Entry, ttl time.Duration) error {
	s.cache.SetWithTTL(key, e, s.cost(e), ttl)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.cache.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied.
func (s *Store) Wait() { s.cache.Wait() }

func (s *Store) Close() error {
	s.cache.Close()
	return nil
}
