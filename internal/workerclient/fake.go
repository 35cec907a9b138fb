package workerclient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tternquist/districache/internal/apperr"
)

// FakeClient is an in-memory Client for router tests. It is safe for
// concurrent use. Optional unreachability injection (Unreachable) supports
// testing the router's failure paths without a real HTTP worker.
type FakeClient struct {
	mu      sync.RWMutex
	addr    string
	entries map[string]fakeEntry
	hits    int64
	misses  int64

	// Unreachable makes every RPC fail as if the worker were down.
	Unreachable bool
}

type fakeEntry struct {
	value  string
	expiry time.Time // zero = no TTL
}

// NewFakeClient creates a FakeClient for addr with an empty cache.
func NewFakeClient(addr string) *FakeClient {
	return &FakeClient{addr: addr, entries: make(map[string]fakeEntry)}
}

var _ Client = (*FakeClient)(nil)

func (f *FakeClient) Addr() string { return f.addr }

func (f *FakeClient) checkReachable() error {
	if f.Unreachable {
		return apperr.Transport
	}
	return nil
}

func (f *FakeClient) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(); err != nil {
		return "", false, err
	}
	e, ok := f.entries[key]
	if !ok {
		f.misses++
		return "", false, nil
	}
	if !e.expiry.IsZero() && time.Now().After(e.expiry) {
		delete(f.entries, key)
		f.misses++
		return "", false, nil
	}
	f.hits++
	return e.value, true, nil
}

func (f *FakeClient) Put(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(); err != nil {
		return err
	}
	var expiry time.Time
	if ttl > 0 {
		expiry = time.Now().Add(ttl)
	}
	f.entries[key] = fakeEntry{value: value, expiry: expiry}
	return nil
}

func (f *FakeClient) Delete(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(); err != nil {
		return false, err
	}
	_, existed := f.entries[key]
	delete(f.entries, key)
	return existed, nil
}

func (f *FakeClient) Stats(_ context.Context) (Stats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.checkReachable(); err != nil {
		return Stats{}, err
	}
	total := f.hits + f.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(f.hits) / float64(total) * 100.0
	}
	return Stats{
		Hits:        f.hits,
		Misses:      f.misses,
		HitRate:     hitRate,
		CurrentSize: len(f.entries),
		Capacity:    len(f.entries),
	}, nil
}

func (f *FakeClient) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(); err != nil {
		return err
	}
	f.entries = make(map[string]fakeEntry)
	f.hits, f.misses = 0, 0
	return nil
}

func (f *FakeClient) ListWithTTL(_ context.Context) ([]Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.checkReachable(); err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]Entry, 0, len(f.entries))
	for k, e := range f.entries {
		if !e.expiry.IsZero() && now.After(e.expiry) {
			continue
		}
		entry := Entry{Key: k, Value: e.value}
		if !e.expiry.IsZero() {
			remain := e.expiry.Sub(now).Seconds()
			if remain < 0 {
				remain = 0
			}
			entry.TTLRemain = &remain
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *FakeClient) CleanupExpired(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReachable(); err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for k, e := range f.entries {
		if !e.expiry.IsZero() && now.After(e.expiry) {
			delete(f.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (f *FakeClient) Health(_ context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.checkReachable()
}

// EntryCount returns the number of stored entries, including expired ones
// not yet removed, for test assertions.
func (f *FakeClient) EntryCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
