package router

import (
	"context"
	"fmt"
	"time"

	"github.com/tternquist/districache/internal/apperr"
	"github.com/tternquist/districache/internal/metrics"
	"github.com/tternquist/districache/internal/workerclient"
)

// FailedReplication records one replica Put that did not take effect.
type FailedReplication struct {
	Node   string `json:"node"`
	Reason string `json:"reason"`
}

// WriteResult is the response shape for a successful Put.
type WriteResult struct {
	SuccessfulNodes    []string            `json:"successful_nodes"`
	FailedReplications []FailedReplication `json:"failed_replications"`
	ReplicatedCount    int                 `json:"replicated_count"`
}

// partitionedErr tags a replication failure as partition-caused rather than
// a transport failure, distinguishing the two in failed_replications.reason.
var partitionedErr = fmt.Errorf("Network Unreachable (Partition): %w", apperr.Partitioned)

// Put implements the write-through + partition-aware replication write path.
// The store write is authoritative: the write is reported successful as
// long as it lands, regardless of replication outcome.
func (r *Router) Put(ctx context.Context, key, value string, ttl time.Duration) (WriteResult, error) {
	ok, err := r.store.Save(ctx, key, value)
	if err != nil || !ok {
		return WriteResult{}, fmt.Errorf("router: store save %q: %w", key, apperr.Internal)
	}

	targets := r.ring.Replicas(key, r.replicationFactor)
	if len(targets) == 0 {
		return WriteResult{}, fmt.Errorf("router: ring empty: %w", apperr.ServiceUnavailable)
	}

	partitionBetweenReplicas := len(targets) >= 2 && r.blocked(targets[0], targets[1])

	result := WriteResult{
		SuccessfulNodes:    make([]string, 0, len(targets)),
		FailedReplications: make([]FailedReplication, 0),
	}

	for i, target := range targets {
		if partitionBetweenReplicas && i == 1 {
			result.FailedReplications = append(result.FailedReplications, FailedReplication{Node: target, Reason: partitionedErr.Error()})
			metrics.RecordReplication(false)
			continue
		}
		if r.blockedFromSelf(target) {
			result.FailedReplications = append(result.FailedReplications, FailedReplication{Node: target, Reason: partitionedErr.Error()})
			metrics.RecordReplication(false)
			continue
		}
		if r.putReplica(ctx, target, key, value, ttl) {
			result.SuccessfulNodes = append(result.SuccessfulNodes, target)
			metrics.RecordReplication(true)
		} else {
			result.FailedReplications = append(result.FailedReplications, FailedReplication{Node: target, Reason: "transport error"})
			metrics.RecordReplication(false)
		}
	}

	result.ReplicatedCount = len(result.SuccessfulNodes)
	return result, nil
}

func (r *Router) putReplica(ctx context.Context, addr, key, value string, ttl time.Duration) bool {
	client := r.clientFor(addr)
	rpcCtx, cancel := r.rpcContext(ctx)
	defer cancel()
	return client.Put(rpcCtx, key, value, ttl) == nil
}

// blocked reports whether the two replica targets are partitioned from each
// other (the §4.3.2 step 3 inter-replica check).
func (r *Router) blocked(a, b string) bool {
	if r.partitions == nil {
		return false
	}
	return r.partitions.Blocked(workerclient.PortFromAddr(a), workerclient.PortFromAddr(b))
}

// blockedFromSelf reports whether the router's own port is partitioned from
// target (the §4.4 router-to-worker check before each replica Put).
func (r *Router) blockedFromSelf(target string) bool {
	if r.partitions == nil {
		return false
	}
	return r.partitions.Blocked(r.selfPort, workerclient.PortFromAddr(target))
}
