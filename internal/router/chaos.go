package router

import (
	"github.com/tternquist/districache/internal/chaos"
	"github.com/tternquist/districache/internal/ring"
)

// ChaosStatus reports the chaos controller's current state.
type ChaosStatus struct {
	State string `json:"state"`
}

// ChaosStart starts the chaos controller. A nil controller reports Idle and
// never errors, so a router without chaos configured behaves as a no-op.
func (r *Router) ChaosStart() error {
	if r.chaos == nil {
		return nil
	}
	return r.chaos.Start()
}

// ChaosStop stops the chaos controller.
func (r *Router) ChaosStop() {
	if r.chaos == nil {
		return
	}
	r.chaos.Stop()
}

// ChaosStatus reports the chaos controller's current state.
func (r *Router) ChaosStatus() ChaosStatus {
	if r.chaos == nil {
		return ChaosStatus{State: string(chaos.Idle)}
	}
	return ChaosStatus{State: string(r.chaos.State())}
}

// RingStats exposes the ring's current membership statistics directly, for
// /cluster/stats and StatsProvider wiring.
func (r *Router) RingStats() ring.Stats {
	return r.ring.Stats()
}

// RingNodesMetadata exposes every occupied ring position, for /cluster/map.
func (r *Router) RingNodesMetadata() []ring.NodeMeta {
	return r.ring.NodesMetadata()
}
