package metrics

import (
	"testing"
)

func TestInit(t *testing.T) {
	reg := Init()
	if reg == nil {
		t.Fatal("Init returned nil registry")
	}
	// Second call should return same registry (sync.Once)
	reg2 := Init()
	if reg != reg2 {
		t.Error("Init should return same registry on subsequent calls")
	}
}

func TestRegistry_BeforeInit(t *testing.T) {
	// Registry is nil until Init is called. In a fresh test process we might have
	// already called Init from another test. So we just verify Registry doesn't panic.
	_ = Registry()
}

func TestRegistry_AfterInit(t *testing.T) {
	reg := Init()
	if Registry() != reg {
		t.Error("Registry should return the registry from Init")
	}
}

func TestRecordCacheHit(t *testing.T) {
	Init()
	RecordCacheHit()
}

func TestRecordCacheMiss(t *testing.T) {
	Init()
	RecordCacheMiss()
}

func TestRecordStoreFallback(t *testing.T) {
	Init()
	RecordStoreFallback()
}

func TestRecordEviction(t *testing.T) {
	Init()
	RecordEviction()
}

func TestRecordReplication(t *testing.T) {
	Init()
	RecordReplication(true)
	RecordReplication(false)
}

func TestRecordChaosStrike(t *testing.T) {
	Init()
	RecordChaosStrike()
}

func TestRecordPartitionEvent(t *testing.T) {
	Init()
	RecordPartitionEvent("created")
	RecordPartitionEvent("removed")
}

func TestUpdateGauges_NilProvider(t *testing.T) {
	Init()
	// Should not panic
	UpdateGauges(nil)
}

func TestUpdateGauges_WithProvider(t *testing.T) {
	Init()
	provider := &mockStatsProvider{
		hitRate:        55.5,
		physicalNodes:  3,
		virtualNodes:   30,
		partitionCount: 1,
	}
	UpdateGauges(provider)
}

type mockStatsProvider struct {
	hitRate        float64
	physicalNodes  int
	virtualNodes   int
	partitionCount int
}

func (m *mockStatsProvider) CacheHitRate() float64 { return m.hitRate }
func (m *mockStatsProvider) RingPhysicalNodes() int { return m.physicalNodes }
func (m *mockStatsProvider) RingVirtualNodes() int  { return m.virtualNodes }
func (m *mockStatsProvider) PartitionCount() int    { return m.partitionCount }
