package router

import (
	"context"
	"fmt"
	"time"

	"github.com/tternquist/districache/internal/apperr"
	"github.com/tternquist/districache/internal/ring"
)

// AddNode registers a worker at host:port with the ring. If the worker is
// unreachable and host is local, a configured Spawner is given up to
// SpawnTimeout to bring it up and pass a health check before the node is
// added regardless of the outcome (ring membership is independent of
// whether the underlying process is actually running). Auto-starting a
// remote, unreachable worker fails InvalidArgument.
func (r *Router) AddNode(ctx context.Context, host, port string) (ring.Stats, error) {
	addr := buildAddr(host, port)
	if r.hasMember(addr) {
		return r.ring.Stats(), nil
	}

	if !r.probeHealth(ctx, addr) {
		if !isLocalHost(host) {
			return ring.Stats{}, fmt.Errorf("router: cannot auto-start remote worker %s: %w", addr, apperr.InvalidArgument)
		}
		if r.spawner != nil {
			spawnCtx, cancel := context.WithTimeout(ctx, r.spawnTimeout)
			r.spawnAndWait(spawnCtx, addr, host, port)
			cancel()
		}
	}

	r.ring.Add(addr)
	return r.ring.Stats(), nil
}

// RemoveNode drops host:port from the ring. Does not touch the worker
// process itself. Fails NotFound if the node is not currently a member.
func (r *Router) RemoveNode(host, port string) (ring.Stats, error) {
	addr := buildAddr(host, port)
	if !r.hasMember(addr) {
		return ring.Stats{}, fmt.Errorf("router: node %s: %w", addr, apperr.NotFound)
	}
	r.ring.Remove(addr)
	r.dropClient(addr)
	return r.ring.Stats(), nil
}

func (r *Router) hasMember(addr string) bool {
	for _, n := range r.ring.Members() {
		if n == addr {
			return true
		}
	}
	return false
}

func (r *Router) probeHealth(ctx context.Context, addr string) bool {
	client := r.clientFor(addr)
	rpcCtx, cancel := r.rpcContext(ctx)
	defer cancel()
	return client.Health(rpcCtx) == nil
}

// spawnAndWait invokes the configured spawner and polls health until ready
// or ctx expires. Spawn or health failures are swallowed: the node is added
// to the ring either way, per AddNode's contract.
func (r *Router) spawnAndWait(ctx context.Context, addr, host, port string) {
	if err := r.spawner(ctx, host, port); err != nil {
		r.logger.Warn("spawn failed", "addr", addr, "err", err)
		return
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if r.probeHealth(ctx, addr) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
