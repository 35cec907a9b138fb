// Package metrics holds the Prometheus instrumentation shared by the router
// and worker binaries.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry *prometheus.Registry
	initOnce sync.Once
)

// Prometheus metrics for the cache fleet.
var (
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of worker cache hits observed by the router's read path",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of worker cache misses observed by the router's read path",
	})

	StoreFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_fallback_total",
		Help: "Total number of reads that fell through to the durable store",
	})

	EvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_evictions_total",
		Help: "Total number of LRU evictions across all workers",
	})

	ReplicationSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replication_success_total",
		Help: "Total number of successful replica Put calls",
	})

	ReplicationFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replication_failure_total",
		Help: "Total number of failed or partition-blocked replica Put calls",
	})

	ChaosStrikesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chaos_strikes_total",
		Help: "Total number of nodes removed from the ring by the chaos controller",
	})

	PartitionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partition_events_total",
		Help: "Total number of partition map mutations, labeled by event",
	}, []string{"event"})

	// Gauges set from stats on scrape.
	CacheHitRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_rate",
		Help: "Router-wide cache hit rate (0-100)",
	})

	RingPhysicalNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ring_physical_nodes",
		Help: "Current number of physical nodes in the hash ring",
	})

	RingVirtualNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ring_virtual_nodes",
		Help: "Current number of occupied virtual-node positions",
	})

	PartitionCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "partition_count",
		Help: "Current number of partitioned node pairs",
	})
)

// StatsProvider supplies current stats for gauge metrics on scrape.
type StatsProvider interface {
	CacheHitRate() float64
	RingPhysicalNodes() int
	RingVirtualNodes() int
	PartitionCount() int
}

// Init registers all metrics with a new registry and returns it. Safe to
// call multiple times; only the first call registers.
func Init() *prometheus.Registry {
	initOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			CacheHitsTotal,
			CacheMissesTotal,
			StoreFallbackTotal,
			EvictionsTotal,
			ReplicationSuccessTotal,
			ReplicationFailureTotal,
			ChaosStrikesTotal,
			PartitionEventsTotal,
			CacheHitRate,
			RingPhysicalNodes,
			RingVirtualNodes,
			PartitionCount,
			prometheus.NewGoCollector(),
		)
	})
	return registry
}

// Registry returns the metrics registry (nil until Init is called).
func Registry() *prometheus.Registry {
	return registry
}

// RecordCacheHit increments the cache hits counter.
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss increments the cache misses counter.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordStoreFallback increments the store-fallback counter.
func RecordStoreFallback() {
	StoreFallbackTotal.Inc()
}

// RecordEviction increments the eviction counter.
func RecordEviction() {
	EvictionsTotal.Inc()
}

// RecordReplication records the outcome of a single replica Put.
func RecordReplication(success bool) {
	if success {
		ReplicationSuccessTotal.Inc()
	} else {
		ReplicationFailureTotal.Inc()
	}
}

// RecordChaosStrike increments the chaos strikes counter.
func RecordChaosStrike() {
	ChaosStrikesTotal.Inc()
}

// RecordPartitionEvent increments the partition events counter for event
// ("created" or "removed").
func RecordPartitionEvent(event string) {
	PartitionEventsTotal.WithLabelValues(event).Inc()
}

// UpdateGauges updates gauge metrics from the provided stats.
func UpdateGauges(p StatsProvider) {
	if p == nil {
		return
	}
	CacheHitRate.Set(p.CacheHitRate())
	RingPhysicalNodes.Set(float64(p.RingPhysicalNodes()))
	RingVirtualNodes.Set(float64(p.RingVirtualNodes()))
	PartitionCount.Set(float64(p.PartitionCount()))
}
