package router

import (
	"github.com/tternquist/districache/internal/metrics"
	"github.com/tternquist/districache/internal/partition"
)

// CreatePartition simulates a bidirectional network partition between two
// worker ports. A nil partition map makes this a no-op.
func (r *Router) CreatePartition(a, b string) {
	if r.partitions == nil {
		return
	}
	r.partitions.Create(a, b)
	metrics.RecordPartitionEvent("created")
	r.notifier.FirePartition(a, b, "created")
}

// RemovePartition heals a partition between two worker ports. A nil
// partition map makes this a no-op.
func (r *Router) RemovePartition(a, b string) {
	if r.partitions == nil {
		return
	}
	r.partitions.Remove(a, b)
	metrics.RecordPartitionEvent("removed")
	r.notifier.FirePartition(a, b, "removed")
}

// PartitionList returns every currently partitioned port pair.
func (r *Router) PartitionList() []partition.Pair {
	if r.partitions == nil {
		return nil
	}
	return r.partitions.List()
}

// PartitionClear removes every partition.
func (r *Router) PartitionClear() {
	if r.partitions == nil {
		return
	}
	r.partitions.ClearAll()
}

// PartitionCount returns the number of currently partitioned pairs, for
// metrics gauges.
func (r *Router) PartitionCount() int {
	if r.partitions == nil {
		return 0
	}
	return len(r.partitions.List())
}
