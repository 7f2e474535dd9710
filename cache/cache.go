// Package cache defines the response cache used by the data source layer.
//
// Entries are keyed by the exact (file, offset, length) tuple of a fetch; a
// repeated request for an identical range is a hit, a sub-range of a cached
// range is not (exact-match cache, not an interval cache). Values are
// immutable byte slices valid for the lifetime of the session.
package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WholeFile is the Length sentinel for a whole-file fetch.
const WholeFile int64 = -1

// Key identifies one cached response.
type Key struct {
	// File is the database file identifier (e.g. "set2gene.bin").
	File string
	// Offset and Length delimit the byte range; Length == WholeFile marks a
	// whole-file entry.
	Offset int64
	Length int64
}

// Store is a byte-oriented cache for immutable responses.
// Returned slices must be treated as read-only.
type Store interface {
	// Get returns a cached response. ok=false if missing.
	Get(ctx context.Context, key Key) (b []byte, ok bool)
	// Set caches a response. The caller must not mutate b afterwards.
	Set(ctx context.Context, key Key, b []byte)
}

// MapStore is an unbounded in-memory Store. It is the default: database
// payloads are small enough that session-lifetime retention without
// eviction is acceptable, and correctness relies on the server's files
// being immutable for a given URL.
type MapStore struct {
	mu      sync.RWMutex
	entries map[Key][]byte
}

// NewMapStore creates an empty unbounded store.
func NewMapStore() *MapStore {
	return &MapStore{entries: make(map[Key][]byte)}
}

func (s *MapStore) Get(_ context.Context, key Key) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.entries[key]
	return b, ok
}

func (s *MapStore) Set(_ context.Context, key Key, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = b
}

// Len returns the number of cached entries.
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// LRUStore is a bounded Store for memory-constrained hosts, evicting the
// least recently used entry once maxEntries is exceeded.
type LRUStore struct {
	inner *lru.Cache[Key, []byte]
}

// NewLRUStore creates a Store holding at most maxEntries responses.
func NewLRUStore(maxEntries int) (*LRUStore, error) {
	inner, err := lru.New[Key, []byte](maxEntries)
	if err != nil {
		return nil, err
	}
	return &LRUStore{inner: inner}, nil
}

func (s *LRUStore) Get(_ context.Context, key Key) ([]byte, bool) {
	return s.inner.Get(key)
}

func (s *LRUStore) Set(_ context.Context, key Key, b []byte) {
	s.inner.Add(key, b)
}
