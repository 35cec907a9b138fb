// Package ring implements a consistent-hash ring over a coarse 360-position
// key space: virtual-node placement for primary/replica ownership with
// minimal churn under membership change.
//
// The 360 modulus is deliberate (see SPEC_FULL.md and
// original_source/backend/src/proxy/consistent_hash.py): the ring is meant to
// be rendered as a circle dial, so frequent virtual-node position collisions
// are expected and tolerated, not a bug to engineer away by switching to a
// wider hash space.
package ring

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// ringModulus is the size of the key space. Named so a future implementer
// changes it deliberately rather than by accident.
const ringModulus = 360

// NodeMeta is one occupied ring position, used by NodesMetadata for
// visualisation.
type NodeMeta struct {
	ID    string `json:"id"`
	Angle int    `json:"angle"`
}

// Stats mirrors spec.md §4.2's ring statistics payload.
type Stats struct {
	NumPhysicalNodes        int      `json:"num_physical_nodes"`
	NumVirtualNodes         int      `json:"num_virtual_nodes"`
	Nodes                   []string `json:"nodes"`
	VirtualNodesPerPhysical int      `json:"virtual_nodes_per_physical"`
}

// Ring is a consistent-hash ring over [0, 360). Safe for concurrent use: a
// single RWMutex guards nodes/vnodes/positions together so a reader never
// observes one updated without the others.
type Ring struct {
	mu                      sync.RWMutex
	virtualNodesPerPhysical int
	nodes                   map[string]struct{}
	vnodes                  map[int]string // ring position -> physical node
	positions               []int          // sorted occupied positions, derived from vnodes
}

// New creates a Ring placing virtualNodesPerPhysical virtual nodes for every
// physical node added to it.
func New(virtualNodesPerPhysical int) *Ring {
	if virtualNodesPerPhysical <= 0 {
		virtualNodesPerPhysical = 1
	}
	return &Ring{
		virtualNodesPerPhysical: virtualNodesPerPhysical,
		nodes:                   make(map[string]struct{}),
		vnodes:                  make(map[int]string),
	}
}

// hashPosition reduces a cryptographic digest of key to a position in
// [0, ringModulus).
func hashPosition(key string) int {
	sum := sha256.Sum256([]byte(key))
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % ringModulus)
}

// Add inserts a physical node, placing up to virtualNodesPerPhysical virtual
// nodes. No-op if the node is already a member. Position collisions mean
// fewer than virtualNodesPerPhysical slots end up occupied for this node;
// last-writer-wins by insertion order, since vnodes is a proximity index, not
// an exact multiset.
func (r *Ring) Add(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node]; exists {
		return
	}
	r.nodes[node] = struct{}{}
	for i := 0; i < r.virtualNodesPerPhysical; i++ {
		pos := hashPosition(fmt.Sprintf("%s:%d", node, i))
		r.vnodes[pos] = node
	}
	r.rebuildPositions()
}

// Remove drops a physical node and every virtual node mapped to it. No-op if
// the node is not a member.
func (r *Ring) Remove(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node]; !exists {
		return
	}
	delete(r.nodes, node)
	for pos, n := range r.vnodes {
		if n == node {
			delete(r.vnodes, pos)
		}
	}
	r.rebuildPositions()
}

// rebuildPositions must be called with r.mu held for writing.
func (r *Ring) rebuildPositions() {
	positions := make([]int, 0, len(r.vnodes))
	for pos := range r.vnodes {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	r.positions = positions
}

// Primary returns the node owning key: the node at the smallest occupied
// position >= hash(key), wrapping to the first position if none qualifies.
// Returns ("", false) if the ring is empty.
func (r *Ring) Primary(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.positions) == 0 {
		return "", false
	}
	idx := r.seekIndex(hashPosition(key))
	return r.vnodes[r.positions[idx]], true
}

// seekIndex returns the index into r.positions of the smallest position >= h,
// wrapping to 0. Must be called with r.mu held (read or write) and a
// non-empty r.positions.
func (r *Ring) seekIndex(h int) int {
	idx := sort.SearchInts(r.positions, h)
	if idx == len(r.positions) {
		idx = 0
	}
	return idx
}

// Replicas returns up to count distinct physical nodes starting at the
// primary and walking clockwise, wrapping at most once. Result length is
// min(count, number of physical nodes).
func (r *Ring) Replicas(key string, count int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.positions) == 0 || count <= 0 {
		return nil
	}
	start := r.seekIndex(hashPosition(key))
	seen := make(map[string]struct{}, count)
	out := make([]string, 0, count)
	n := len(r.positions)
	for i := 0; i < n && len(out) < count; i++ {
		node := r.vnodes[r.positions[(start+i)%n]]
		if _, dup := seen[node]; dup {
			continue
		}
		seen[node] = struct{}{}
		out = append(out, node)
	}
	return out
}

// Stats returns the ring's current membership statistics.
func (r *Ring) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]string, 0, len(r.nodes))
	for n := range r.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return Stats{
		NumPhysicalNodes:        len(r.nodes),
		NumVirtualNodes:         len(r.vnodes),
		Nodes:                   nodes,
		VirtualNodesPerPhysical: r.virtualNodesPerPhysical,
	}
}

// NodesMetadata returns every occupied ring position, sorted by angle, for
// geometric (circle-dial) visualisation.
func (r *Ring) NodesMetadata() []NodeMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NodeMeta, 0, len(r.vnodes))
	for pos, node := range r.vnodes {
		out = append(out, NodeMeta{ID: node, Angle: pos})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Angle < out[j].Angle })
	return out
}

// IsEmpty reports whether the ring has no physical nodes.
func (r *Ring) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes) == 0
}

// Members returns a snapshot of the physical nodes currently in the ring,
// sorted for deterministic fan-out iteration order.
func (r *Ring) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nodes))
	for n := range r.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
