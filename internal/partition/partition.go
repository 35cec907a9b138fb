// Package partition tracks simulated network partitions between cache
// worker ports, for chaos testing of the router's replication paths.
package partition

import "sync"

// pairKey returns a canonical, order-independent key for a port pair.
func pairKey(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Map is a symmetric set of blocked port pairs. A partition between a and b
// blocks traffic in both directions; Map never represents a one-directional
// partition. Safe for concurrent use.
type Map struct {
	mu    sync.RWMutex
	pairs map[string]map[string]struct{} // a -> set of ports partitioned from a
}

// New returns an empty partition map.
func New() *Map {
	return &Map{pairs: make(map[string]map[string]struct{})}
}

// Create partitions a and b from each other. No-op if a == b, or if the
// partition already exists.
func (m *Map) Create(a, b string) {
	if a == b {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link(a, b)
	m.link(b, a)
}

// link must be called with m.mu held for writing.
func (m *Map) link(from, to string) {
	set, ok := m.pairs[from]
	if !ok {
		set = make(map[string]struct{})
		m.pairs[from] = set
	}
	set[to] = struct{}{}
}

// Remove heals the partition between a and b, in both directions. No-op if
// no such partition exists.
func (m *Map) Remove(a, b string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlink(a, b)
	m.unlink(b, a)
}

// unlink must be called with m.mu held for writing.
func (m *Map) unlink(from, to string) {
	set, ok := m.pairs[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(m.pairs, from)
	}
}

// Blocked reports whether x and y are currently partitioned from each other.
// Symmetric: Blocked(x, y) == Blocked(y, x).
func (m *Map) Blocked(x, y string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.pairs[x]
	if !ok {
		return false
	}
	_, blocked := set[y]
	return blocked
}

// Pair is one partitioned port pair, in canonical (lexically smaller first)
// order.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// List returns every partitioned pair, deduplicated and in canonical order.
// Order among distinct pairs is unspecified.
func (m *Map) List() []Pair {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]Pair, 0)
	for from, set := range m.pairs {
		for to := range set {
			a, b := pairKey(from, to)
			key := a + "\x00" + b
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, Pair{A: a, B: b})
		}
	}
	return out
}

// ClearAll removes every partition.
func (m *Map) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs = make(map[string]map[string]struct{})
}
