// Package workerclient is the router's RPC handle to a cache worker
// process. It abstracts the transport (plain HTTP) behind an interface so
// the router's data paths can be tested against a fake.
package workerclient

import (
	"context"
	"time"
)

// Entry mirrors lrucache.Entry without importing the worker's cache
// package directly, keeping this client's wire contract self-contained.
type Entry struct {
	Key       string   `json:"key"`
	Value     string   `json:"value"`
	TTLRemain *float64 `json:"ttl_remaining,omitempty"`
}

// Stats mirrors lrucache.Stats.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	CurrentSize int     `json:"current_size"`
	Capacity    int     `json:"capacity"`
}

// Client is the router's view of a cache worker: a context-aware RPC
// surface matching internal/workerserver's endpoints one for one.
type Client interface {
	// Addr returns the worker's address, as registered in the ring.
	Addr() string
	// Get fetches a value. ok=false and no error means a clean miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Put stores a value with an optional TTL (0 = no TTL).
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes a value. existed reports whether the key was present.
	Delete(ctx context.Context, key string) (existed bool, err error)
	// Stats returns the worker's cache statistics.
	Stats(ctx context.Context) (Stats, error)
	// Clear empties the worker's cache.
	Clear(ctx context.Context) error
	// ListWithTTL lists every non-expired entry.
	ListWithTTL(ctx context.Context) ([]Entry, error)
	// CleanupExpired forces an eager expiry sweep, returning the count removed.
	CleanupExpired(ctx context.Context) (int, error)
	// Health reports whether the worker is reachable and responding.
	Health(ctx context.Context) error
}

// Factory builds a Client for a worker address. Swapped out in tests for a
// constructor that returns fakes.
type Factory func(addr string) Client
