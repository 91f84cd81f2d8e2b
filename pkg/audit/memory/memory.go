// Package memory provides an in-memory audit sink for tests and
// single-process deployments. Records are lost when the process restarts.
// An optional size bound evicts the oldest records.
package memory

import (
	"context"
	"container/list"
	"fmt"
	"sync"

	"github.com/rhuss/modelserve/pkg/audit"
)

// Store is an in-memory audit.Sink.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List // front = newest
	maxSize int        // 0 = unlimited
}

var _ audit.Sink = (*Store)(nil)

// New creates an in-memory store holding at most maxSize records. Zero
// means unbounded.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Append stores rec. Appending an existing ID is an error.
func (s *Store) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return fmt.Errorf("audit record %s already exists", rec.ID)
	}
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}
	s.entries[rec.ID] = s.order.PushFront(rec)
	return nil
}

// Get returns the record with the given ID.
func (s *Store) Get(_ context.Context, id string) (audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elem, ok := s.entries[id]
	if !ok {
		return audit.Record{}, audit.ErrNotFound
	}
	return elem.Value.(audit.Record), nil
}

// List returns matching records, newest first.
func (s *Store) List(_ context.Context, opts audit.ListOptions) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.EffectiveLimit()
	var out []audit.Record
	for e := s.order.Front(); e != nil && len(out) < limit; e = e.Next() {
		rec := e.Value.(audit.Record)
		if opts.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// evictOldest drops the oldest record. Caller must hold the write lock.
func (s *Store) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	s.order.Remove(back)
	delete(s.entries, back.Value.(audit.Record).ID)
}
