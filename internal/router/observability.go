package router

import (
	"context"
	"sort"
	"sync"

	"github.com/tternquist/districache/internal/workerclient"
)

// NodeStats is one worker's contribution to GlobalStatsResult.
type NodeStats struct {
	CurrentSize int `json:"current_size"`
	Capacity    int `json:"capacity"`
}

// GlobalStatsResult aggregates cache statistics across every ring member.
// Unreachable nodes contribute zero to every field.
type GlobalStatsResult struct {
	Hits    int64                `json:"hits"`
	Misses  int64                `json:"misses"`
	HitRate float64              `json:"hit_rate"`
	Nodes   map[string]NodeStats `json:"nodes"`
}

// GlobalStats fans Stats out to every ring member concurrently and
// aggregates the results.
func (r *Router) GlobalStats(ctx context.Context) GlobalStatsResult {
	members := r.ring.Members()
	result := GlobalStatsResult{Nodes: make(map[string]NodeStats, len(members))}
	if len(members) == 0 {
		return result
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(members))
	for _, addr := range members {
		go func(addr string) {
			defer wg.Done()
			client := r.clientFor(addr)
			rpcCtx, cancel := r.rpcContext(ctx)
			stats, err := client.Stats(rpcCtx)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Nodes[addr] = NodeStats{}
				return
			}
			result.Hits += stats.Hits
			result.Misses += stats.Misses
			result.Nodes[addr] = NodeStats{CurrentSize: stats.CurrentSize, Capacity: stats.Capacity}
		}(addr)
	}
	wg.Wait()

	total := result.Hits + result.Misses
	if total > 0 {
		result.HitRate = roundTo(float64(result.Hits)/float64(total)*100, 2)
	}
	return result
}

// AllKeys fans ListWithTTL out to every ring member concurrently,
// deduplicates by key (first occurrence wins, since a key may be replicated
// across several workers), and stable-sorts by ttl_remaining ascending with
// no-TTL entries last.
func (r *Router) AllKeys(ctx context.Context) []workerclient.Entry {
	members := r.ring.Members()
	if len(members) == 0 {
		return []workerclient.Entry{}
	}

	perNode := make([][]workerclient.Entry, len(members))
	var wg sync.WaitGroup
	wg.Add(len(members))
	for i, addr := range members {
		go func(i int, addr string) {
			defer wg.Done()
			client := r.clientFor(addr)
			rpcCtx, cancel := r.rpcContext(ctx)
			entries, err := client.ListWithTTL(rpcCtx)
			cancel()
			if err != nil {
				return
			}
			perNode[i] = entries
		}(i, addr)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	out := make([]workerclient.Entry, 0)
	for _, entries := range perNode {
		for _, e := range entries {
			if _, dup := seen[e.Key]; dup {
				continue
			}
			seen[e.Key] = struct{}{}
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].TTLRemain, out[j].TTLRemain
		if a == nil && b == nil {
			return false
		}
		if a == nil {
			return false // no-TTL entries sort last
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
	return out
}
