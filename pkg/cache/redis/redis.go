// Package redis provides a cache store shared across server replicas.
//
// Values are the 8-byte big-endian StoredAt in unix nanoseconds followed by
// the binary encoding of the response.
package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/modelserve/pkg/cache"
	"github.com/rhuss/modelserve/pkg/codec"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "modelserve:cache:"

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps entries in redis.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

var _ cache.Store = (*Store)(nil)

// New connects to redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient wraps an existing client. An empty prefix uses
// DefaultPrefix.
func NewWithClient(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("redis: get: %w", err)
	}
	e, err := unmarshalEntry(b)
	if err != nil {
		return cache.Entry{}, false, err
	}
	return e, true, nil
}

// Set stores e with ttl as the key expiry.
func (s *Store) Set(ctx context.Context, key string, e cache.Entry, ttl time.Duration) error {
	b, err := marshalEntry(e)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis: del: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }

func marshalEntry(e cache.Entry) ([]byte, error) {
	payload, err := codec.EncodeResponse(e.Response)
	if err != nil {
		return nil, fmt.Errorf("redis: encode entry: %w", err)
	}
	b := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint64(b, uint64(e.StoredAt.UnixNano()))
	return append(b, payload...), nil
}

func unmarshalEntry(b []byte) (cache.Entry, error) {
	if len(b) < 8 {
		return cache.Entry{}, fmt.Errorf("redis: entry of %d bytes is truncated", len(b))
	}
	resp, err := codec.DecodeResponse(b[8:])
	if err != nil {
		return cache.Entry{}, fmt.Errorf("redis: decode entry: %w", err)
	}
	return cache.Entry{
		Response: resp,
		StoredAt: time.Unix(0, int64(binary.BigEndian.Uint64(b[:8]))),
	}, nil
}
