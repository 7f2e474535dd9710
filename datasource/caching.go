package datasource

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/LTLA/gesel-manuscript/cache"
)

// CachingSource wraps a Source with an exact-match response cache and
// request de-duplication: a second request for an identical in-flight range
// awaits the first fetch instead of issuing its own.
type CachingSource struct {
	inner  Source
	store  cache.Store
	flight singleflight.Group
	logger *slog.Logger
	prefix string
}

// CachingOption configures a CachingSource.
type CachingOption func(*CachingSource)

// WithKeyPrefix namespaces the cache keys, so one shared cache.Store can
// back several sources (e.g. one per species) without file-name collisions.
func WithKeyPrefix(prefix string) CachingOption {
	return func(s *CachingSource) {
		s.prefix = prefix
	}
}

// NewCachingSource wraps inner. If store is nil an unbounded MapStore is
// used; if logger is nil cache traffic is not logged.
func NewCachingSource(inner Source, store cache.Store, logger *slog.Logger, opts ...CachingOption) *CachingSource {
	if store == nil {
		store = cache.NewMapStore()
	}
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	s := &CachingSource{inner: inner, store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CachingSource) FetchWhole(ctx context.Context, name string) ([]byte, error) {
	key := cache.Key{File: s.prefix + name, Offset: 0, Length: cache.WholeFile}
	return s.fetch(ctx, key, func() ([]byte, error) {
		return s.inner.FetchWhole(ctx, name)
	})
}

func (s *CachingSource) FetchRange(ctx context.Context, name string, start, length int64) ([]byte, error) {
	key := cache.Key{File: s.prefix + name, Offset: start, Length: length}
	return s.fetch(ctx, key, func() ([]byte, error) {
		return s.inner.FetchRange(ctx, name, start, length)
	})
}

// Prefetch forwards to the inner source when it supports warm-up.
func (s *CachingSource) Prefetch(ctx context.Context, names ...string) error {
	if p, ok := s.inner.(Prefetcher); ok {
		return p.Prefetch(ctx, names...)
	}
	return nil
}

func (s *CachingSource) fetch(ctx context.Context, key cache.Key, load func() ([]byte, error)) ([]byte, error) {
	if b, ok := s.store.Get(ctx, key); ok {
		s.logger.Debug("cache hit", "file", key.File, "offset", key.Offset, "length", key.Length)
		return b, nil
	}

	flightKey := fmt.Sprintf("%s@%d+%d", key.File, key.Offset, key.Length)
	v, err, shared := s.flight.Do(flightKey, func() (any, error) {
		// Re-check: a concurrent flight may have populated the store
		// between our miss and entering the group.
		if b, ok := s.store.Get(ctx, key); ok {
			return b, nil
		}
		b, err := load()
		if err != nil {
			return nil, err
		}
		s.store.Set(ctx, key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("fetch deduplicated", "file", key.File, "offset", key.Offset, "length", key.Length)
	}
	return v.([]byte), nil
}
