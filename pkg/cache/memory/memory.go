// Package memory provides an in-process cache store with optional LRU
// eviction.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rhuss/modelserve/pkg/cache"
)

type entry struct {
	key     string
	value   cache.Entry
	lruElem *list.Element
}

// Store is a map of entries with an LRU list. It is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	lruList    *list.List // front = most recently used
	maxEntries int        // 0 = unlimited
}

var _ cache.Store = (*Store)(nil)

// New creates a store holding at most maxEntries entries. When full, the
// least recently used entry is evicted. Zero means unbounded.
func New(maxEntries int) *Store {
	return &Store{
		entries:    make(map[string]*entry),
		lruList:    list.New(),
		maxEntries: maxEntries,
	}
}

func (s *Store) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return cache.Entry{}, false, nil
	}
	s.lruList.MoveToFront(e.lruElem)
	return e.value, true, nil
}

func (s *Store) Set(_ context.Context, key string, value cache.Entry, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.value = value
		s.lruList.MoveToFront(e.lruElem)
		return nil
	}

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}

	e := &entry{key: key, value: value}
	e.lruElem = s.lruList.PushFront(e)
	s.entries[key] = e
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.lruList.Remove(e.lruElem)
		delete(s.entries, key)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// evictOldest removes the least recently used entry. Caller must hold mu.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	s.lruList.Remove(back)
	delete(s.entries, e.key)
}
