package partition

import "testing"

func TestCreate_SymmetricBlock(t *testing.T) {
	m := New()
	m.Create("8000", "8001")
	if !m.Blocked("8000", "8001") {
		t.Error("expected 8000 blocked from 8001")
	}
	if !m.Blocked("8001", "8000") {
		t.Error("expected symmetric block 8001 from 8000")
	}
}

func TestBlocked_FalseForUnrelatedPorts(t *testing.T) {
	m := New()
	m.Create("8000", "8001")
	if m.Blocked("8000", "8002") {
		t.Error("8000 and 8002 should not be blocked")
	}
}

func TestRemove_RoundTrip(t *testing.T) {
	m := New()
	m.Create("8000", "8001")
	m.Remove("8000", "8001")
	if m.Blocked("8000", "8001") || m.Blocked("8001", "8000") {
		t.Error("expected partition healed in both directions")
	}
}

func TestCreate_SelfPartitionIsNoOp(t *testing.T) {
	m := New()
	m.Create("8000", "8000")
	if m.Blocked("8000", "8000") {
		t.Error("a node should never be partitioned from itself")
	}
	if len(m.List()) != 0 {
		t.Error("self-partition should not appear in List")
	}
}

func TestRemove_NonexistentIsNoOp(t *testing.T) {
	m := New()
	m.Remove("8000", "8001") // must not panic
	if len(m.List()) != 0 {
		t.Error("expected empty list")
	}
}

func TestList_DeduplicatedCanonicalPairs(t *testing.T) {
	m := New()
	m.Create("8001", "8000")
	list := m.List()
	if len(list) != 1 {
		t.Fatalf("List() = %v, want 1 pair", list)
	}
	if list[0].A != "8000" || list[0].B != "8001" {
		t.Errorf("List()[0] = %+v, want canonical order a=8000 b=8001", list[0])
	}
}

func TestList_MultiplePartitions(t *testing.T) {
	m := New()
	m.Create("8000", "8001")
	m.Create("8000", "8002")
	m.Create("8001", "8002")
	if len(m.List()) != 3 {
		t.Errorf("List() len = %d, want 3", len(m.List()))
	}
}

func TestClearAll_RemovesEverything(t *testing.T) {
	m := New()
	m.Create("8000", "8001")
	m.Create("8000", "8002")
	m.ClearAll()
	if len(m.List()) != 0 {
		t.Error("expected no partitions after ClearAll")
	}
	if m.Blocked("8000", "8001") {
		t.Error("expected Blocked false after ClearAll")
	}
}
