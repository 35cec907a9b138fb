package router

import (
	"context"
	"fmt"
	"time"

	"github.com/tternquist/districache/internal/apperr"
	"github.com/tternquist/districache/internal/metrics"
)

// ReadResult is the response shape for a successful Get.
type ReadResult struct {
	Value     string  `json:"value"`
	Source    string  `json:"source"` // "cache" or "store"
	LatencyMS float64 `json:"latency_ms"`
}

// Get implements the cache-aside read path. When bypass is true, the store
// is read directly after the simulated bypass latency, skipping the cache
// entirely. Otherwise the primary worker is tried first, falling through to
// the store on a miss or any transport error, with a best-effort
// repopulate of the primary before returning.
func (r *Router) Get(ctx context.Context, key string, bypass bool) (ReadResult, error) {
	start := time.Now()

	if bypass {
		r.sleep(ctx, r.bypassLatency)
		value, found, err := r.store.Fetch(ctx, key)
		if err != nil {
			return ReadResult{}, fmt.Errorf("router: bypass fetch %q: %w", key, apperr.Internal)
		}
		if !found {
			return ReadResult{}, fmt.Errorf("router: key %q: %w", key, apperr.NotFound)
		}
		return ReadResult{Value: value, Source: "store", LatencyMS: elapsedMS(start)}, nil
	}

	primary, ok := r.ring.Primary(key)
	if !ok {
		return ReadResult{}, fmt.Errorf("router: ring empty: %w", apperr.ServiceUnavailable)
	}
	client := r.clientFor(primary)

	rpcCtx, cancel := r.rpcContext(ctx)
	value, hit, err := client.Get(rpcCtx, key)
	cancel()
	if err == nil && hit {
		metrics.RecordCacheHit()
		return ReadResult{Value: value, Source: "cache", LatencyMS: elapsedMS(start)}, nil
	}
	metrics.RecordCacheMiss()
	metrics.RecordStoreFallback()

	value, found, ferr := r.store.Fetch(ctx, key)
	if ferr != nil {
		return ReadResult{}, fmt.Errorf("router: store fetch %q: %w", key, apperr.Internal)
	}
	if !found {
		return ReadResult{}, fmt.Errorf("router: key %q: %w", key, apperr.NotFound)
	}

	// Best-effort repopulate: initiated before responding, but allowed to
	// complete after.
	go func(value string) {
		refillCtx, cancel := context.WithTimeout(context.Background(), r.workerRPCTimeout)
		defer cancel()
		_ = client.Put(refillCtx, key, value, r.refillTTL)
	}(value)

	return ReadResult{Value: value, Source: "store", LatencyMS: elapsedMS(start)}, nil
}
