package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// fakeTier is an in-memory Tier with per-operation failure injection.
type fakeTier struct {
	name string

	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failOn  map[string]error
	getHits int
}

func newFakeTier(name string) *fakeTier {
	return &fakeTier{
		name:   name,
		data:   map[string][]byte{},
		ttls:   map[string]time.Duration{},
		failOn: map[string]error{},
	}
}

func (f *fakeTier) fail(op string, err error) *fakeTier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = err
	return f
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["get"]; err != nil {
		return nil, false, err
	}
	v, ok := f.data[key]
	if ok {
		f.getHits++
	}
	return v, ok, nil
}

func (f *fakeTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["set"]; err != nil {
		return err
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeTier) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["delete"]; err != nil {
		return err
	}
	delete(f.data, key)
	return nil
}

func (f *fakeTier) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["clear"]; err != nil {
		return err
	}
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
		}
	}
	return nil
}

func (f *fakeTier) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeTier) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = []byte(value)
}
