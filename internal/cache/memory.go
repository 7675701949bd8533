package cache

import (
	"context"
	"strings"
	"time"

	"github.com/maypok86/otter"
)

// MemoryTier is the fast volatile tier: a process-local S3-FIFO cache with per-entry TTL.
type MemoryTier struct {
	store otter.CacheWithVariableTTL[string, []byte]
}

// NewMemoryTier builds the in-process tier. capacity is a hard cap on entries.
func NewMemoryTier(capacity int) (*MemoryTier, error) {
	store, err := otter.MustBuilder[string, []byte](capacity).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, err
	}
	return &MemoryTier{store: store}, nil
}

func (m *MemoryTier) Name() string { return "memory" }

func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.store.Get(key)
	return v, ok, nil
}

// Set stores value under key. otter may reject an entry under memory pressure;
// that is not an error for a cache.
func (m *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	m.store.Set(key, value, ttl)
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

func (m *MemoryTier) DeletePrefix(_ context.Context, prefix string) error {
	m.store.DeleteByFunc(func(key string, _ []byte) bool {
		return strings.HasPrefix(key, prefix)
	})
	return nil
}

// Size returns the number of live entries.
func (m *MemoryTier) Size() int {
	return m.store.Size()
}

// Close stops otter's background goroutines.
func (m *MemoryTier) Close() {
	m.store.Close()
}
