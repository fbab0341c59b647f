package bundle

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore keeps recently loaded bundles in memory in front of another
// store. Writes go through to the underlying store.
type CachedStore struct {
	store Store
	cache *lru.Cache[string, *Bundle]
	mu    sync.Mutex
}

// NewCachedStore wraps store with an LRU cache of size bundles.
func NewCachedStore(store Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, *Bundle](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{store: store, cache: cache}, nil
}

// Save writes through and refreshes the cache.
func (s *CachedStore) Save(ctx context.Context, b *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, b); err != nil {
		s.cache.Remove(b.Outlet)
		return err
	}
	s.cache.Add(b.Outlet, b)
	return nil
}

// Load returns the cached bundle or loads it.
func (s *CachedStore) Load(ctx context.Context, outlet string) (*Bundle, error) {
	if b, ok := s.cache.Get(outlet); ok {
		return b, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.store.Load(ctx, outlet)
	if err != nil {
		return nil, err
	}
	s.cache.Add(outlet, b)
	return b, nil
}

// Delete removes the bundle from the store and the cache.
func (s *CachedStore) Delete(ctx context.Context, outlet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Remove(outlet)
	return s.store.Delete(ctx, outlet)
}
