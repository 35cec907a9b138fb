package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tternquist/districache/internal/apperr"
	"github.com/tternquist/districache/internal/chaos"
	"github.com/tternquist/districache/internal/partition"
	"github.com/tternquist/districache/internal/ring"
	"github.com/tternquist/districache/internal/store/memstore"
	"github.com/tternquist/districache/internal/workerclient"
)

func newTestRouter(t *testing.T, nodes ...string) (*Router, *ring.Ring, map[string]*workerclient.FakeClient) {
	t.Helper()
	r := ring.New(10)
	fakes := make(map[string]*workerclient.FakeClient)
	for _, n := range nodes {
		r.Add(n)
		fakes[n] = workerclient.NewFakeClient(n)
	}
	factory := func(addr string) workerclient.Client {
		if fc, ok := fakes[addr]; ok {
			return fc
		}
		fc := workerclient.NewFakeClient(addr)
		fakes[addr] = fc
		return fc
	}

	router := New(Config{
		Ring:              r,
		Store:             memstore.New(),
		Partitions:        partition.New(),
		ClientFactory:     factory,
		BypassLatency:     time.Millisecond, // keep tests fast
		ReplicationFactor: 2,
	})
	return router, r, fakes
}

func TestGet_CacheHit(t *testing.T) {
	router, rg, fakes := newTestRouter(t, "http://127.0.0.1:9001")
	primary, _ := rg.Primary("k")
	fakes[primary].Put(context.Background(), "k", "v", 0)

	result, err := router.Get(context.Background(), "k", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if result.Value != "v" || result.Source != "cache" {
		t.Errorf("Get = %+v, want value=v source=cache", result)
	}
}

func TestGet_CacheMissFallsThroughToStoreAndRepopulates(t *testing.T) {
	router, rg, fakes := newTestRouter(t, "http://127.0.0.1:9001")
	ctx := context.Background()
	router.store.Save(ctx, "k", "from-store")

	result, err := router.Get(ctx, "k", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if result.Value != "from-store" || result.Source != "store" {
		t.Errorf("Get = %+v, want value=from-store source=store", result)
	}

	primary, _ := rg.Primary("k")
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if fakes[primary].EntryCount() > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if fakes[primary].EntryCount() != 1 {
		t.Error("expected best-effort repopulate to land in the primary's cache")
	}
}

func TestGet_NotFoundWhenMissingEverywhere(t *testing.T) {
	router, _, _ := newTestRouter(t, "http://127.0.0.1:9001")
	_, err := router.Get(context.Background(), "missing", false)
	if !errors.Is(err, apperr.NotFound) {
		t.Errorf("Get error = %v, want NotFound", err)
	}
}

func TestGet_EmptyRingFailsServiceUnavailable(t *testing.T) {
	router, _, _ := newTestRouter(t)
	_, err := router.Get(context.Background(), "k", false)
	if !errors.Is(err, apperr.ServiceUnavailable) {
		t.Fatalf("Get error = %v, want ServiceUnavailable for empty ring", err)
	}
}

func TestGet_BypassReadsStoreDirectly(t *testing.T) {
	router, rg, fakes := newTestRouter(t, "http://127.0.0.1:9001")
	ctx := context.Background()
	primary, _ := rg.Primary("k")
	fakes[primary].Put(ctx, "k", "cached-value", 0)
	router.store.Save(ctx, "k", "store-value")

	result, err := router.Get(ctx, "k", true)
	if err != nil {
		t.Fatalf("Get bypass: %v", err)
	}
	if result.Value != "store-value" || result.Source != "store" {
		t.Errorf("Get bypass = %+v, want value=store-value source=store", result)
	}
}

func TestPut_SucceedsAndReplicates(t *testing.T) {
	router, _, fakes := newTestRouter(t, "http://127.0.0.1:9001", "http://127.0.0.1:9002", "http://127.0.0.1:9003")
	result, err := router.Put(context.Background(), "k", "v", 0)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if result.ReplicatedCount != len(result.SuccessfulNodes) {
		t.Errorf("ReplicatedCount = %d, want %d", result.ReplicatedCount, len(result.SuccessfulNodes))
	}
	if len(result.SuccessfulNodes) != 2 {
		t.Errorf("len(SuccessfulNodes) = %d, want 2 (replication_factor)", len(result.SuccessfulNodes))
	}
	for _, addr := range result.SuccessfulNodes {
		if fakes[addr].EntryCount() != 1 {
			t.Errorf("node %s: EntryCount = %d, want 1", addr, fakes[addr].EntryCount())
		}
	}
}

func TestPut_PartitionBetweenReplicasFailsSecondTarget(t *testing.T) {
	router, rg, _ := newTestRouter(t, "http://127.0.0.1:9001", "http://127.0.0.1:9002", "http://127.0.0.1:9003")
	targets := rg.Replicas("k", 2)
	if len(targets) < 2 {
		t.Fatal("expected at least 2 replica targets")
	}
	router.partitions.Create(workerclient.PortFromAddr(targets[0]), workerclient.PortFromAddr(targets[1]))

	result, err := router.Put(context.Background(), "k", "v", 0)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(result.FailedReplications) != 1 {
		t.Fatalf("len(FailedReplications) = %d, want 1", len(result.FailedReplications))
	}
	if result.FailedReplications[0].Node != targets[1] {
		t.Errorf("failed replication node = %s, want %s", result.FailedReplications[0].Node, targets[1])
	}
	if !errors.Is(partitionedErr, apperr.Partitioned) {
		t.Fatalf("partitionedErr does not wrap apperr.Partitioned")
	}
	if result.FailedReplications[0].Reason != partitionedErr.Error() {
		t.Errorf("reason = %q, want %q", result.FailedReplications[0].Reason, partitionedErr.Error())
	}
}

func TestPut_UnreachableReplicaRecordsFailure(t *testing.T) {
	router, rg, fakes := newTestRouter(t, "http://127.0.0.1:9001", "http://127.0.0.1:9002")
	targets := rg.Replicas("k", 2)
	fakes[targets[1]].Unreachable = true

	result, err := router.Put(context.Background(), "k", "v", 0)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(result.SuccessfulNodes) != 1 || len(result.FailedReplications) != 1 {
		t.Fatalf("result = %+v, want 1 success 1 failure", result)
	}
}

func TestPut_EmptyRingFailsServiceUnavailable(t *testing.T) {
	router, _, _ := newTestRouter(t)
	_, err := router.Put(context.Background(), "k", "v", 0)
	if !errors.Is(err, apperr.ServiceUnavailable) {
		t.Fatalf("Put error = %v, want ServiceUnavailable for empty ring", err)
	}
}

func TestAddNode_Idempotent(t *testing.T) {
	router, rg, _ := newTestRouter(t, "http://127.0.0.1:9001")
	stats, err := router.AddNode(context.Background(), "127.0.0.1", "9001")
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if stats.NumPhysicalNodes != 1 {
		t.Errorf("NumPhysicalNodes = %d, want 1", stats.NumPhysicalNodes)
	}
	_ = rg
}

func TestAddNode_RemoteUnreachableFails(t *testing.T) {
	router, _, _ := newTestRouter(t)
	_, err := router.AddNode(context.Background(), "10.0.0.5", "9001")
	if err == nil {
		t.Fatal("expected error for unreachable remote worker")
	}
}

func TestRemoveNode_NotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)
	_, err := router.RemoveNode("127.0.0.1", "9001")
	if !errors.Is(err, apperr.NotFound) {
		t.Fatalf("RemoveNode error = %v, want NotFound for missing node", err)
	}
}

func TestRemoveNode_RemovesFromRing(t *testing.T) {
	router, rg, _ := newTestRouter(t, "http://127.0.0.1:9001")
	stats, err := router.RemoveNode("127.0.0.1", "9001")
	if err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if stats.NumPhysicalNodes != 0 {
		t.Errorf("NumPhysicalNodes = %d, want 0", stats.NumPhysicalNodes)
	}
	if !rg.IsEmpty() {
		t.Error("ring should be empty after removing its only node")
	}
}

func TestGlobalStats_AggregatesAcrossNodes(t *testing.T) {
	router, _, fakes := newTestRouter(t, "http://127.0.0.1:9001", "http://127.0.0.1:9002")
	ctx := context.Background()
	for addr, fc := range fakes {
		fc.Put(ctx, "k1", "v1", 0)
		fc.Get(ctx, "k1") // hit
		fc.Get(ctx, "missing-"+addr) // miss
	}

	stats := router.GlobalStats(ctx)
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("GlobalStats hits/misses = %d/%d, want 2/2", stats.Hits, stats.Misses)
	}
	if len(stats.Nodes) != 2 {
		t.Errorf("len(Nodes) = %d, want 2", len(stats.Nodes))
	}
}

func TestGlobalStats_UnreachableNodeContributesZero(t *testing.T) {
	router, _, fakes := newTestRouter(t, "http://127.0.0.1:9001", "http://127.0.0.1:9002")
	for _, fc := range fakes {
		fc.Unreachable = true
	}
	stats := router.GlobalStats(context.Background())
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("expected zero contribution from unreachable nodes, got hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

func TestAllKeys_DeduplicatesAndSortsByTTL(t *testing.T) {
	router, _, fakes := newTestRouter(t, "http://127.0.0.1:9001", "http://127.0.0.1:9002")
	ctx := context.Background()
	var first *workerclient.FakeClient
	for _, fc := range fakes {
		first = fc
		fc.Put(ctx, "shared", "v1", 0) // on every node, no TTL, sorts last
	}
	first.Put(ctx, "short-ttl", "v2", time.Hour)

	keys := router.AllKeys(ctx)
	var sawShared, sawShortTTL bool
	sharedCount := 0
	for _, k := range keys {
		if k.Key == "shared" {
			sawShared = true
			sharedCount++
		}
		if k.Key == "short-ttl" {
			sawShortTTL = true
		}
	}
	if !sawShared || !sawShortTTL {
		t.Fatalf("AllKeys missing expected entries: %+v", keys)
	}
	if sharedCount != 1 {
		t.Errorf("key held by every node listed %d times, want 1", sharedCount)
	}
	// the no-TTL entry must not appear before a TTL'd entry
	sharedIdx, shortIdx := -1, -1
	for i, k := range keys {
		if k.Key == "shared" {
			sharedIdx = i
		}
		if k.Key == "short-ttl" {
			shortIdx = i
		}
	}
	if sharedIdx < shortIdx {
		t.Errorf("no-TTL entry %d came before TTL'd entry %d", sharedIdx, shortIdx)
	}
}

func TestPartitionRoundTrip(t *testing.T) {
	router, _, _ := newTestRouter(t)
	router.CreatePartition("9001", "9002")
	if router.PartitionCount() != 1 {
		t.Fatalf("PartitionCount = %d, want 1", router.PartitionCount())
	}
	router.RemovePartition("9001", "9002")
	if router.PartitionCount() != 0 {
		t.Errorf("PartitionCount = %d, want 0 after remove", router.PartitionCount())
	}
}

func TestChaosStatus_NilControllerReportsIdle(t *testing.T) {
	router, _, _ := newTestRouter(t)
	if router.ChaosStatus().State != string(chaos.Idle) {
		t.Errorf("ChaosStatus = %+v, want idle", router.ChaosStatus())
	}
}
