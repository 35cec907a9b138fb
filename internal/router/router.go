// Package router implements the coordinator that sits between cache worker
// clients and a durable store: a consistent-hash ring for placement, a
// cache-aside read path, a write-through + partition-aware replication
// write path, cluster membership operations, and fleet-wide observability.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tternquist/districache/internal/chaos"
	"github.com/tternquist/districache/internal/logging"
	"github.com/tternquist/districache/internal/partition"
	"github.com/tternquist/districache/internal/ring"
	"github.com/tternquist/districache/internal/store"
	"github.com/tternquist/districache/internal/webhook"
	"github.com/tternquist/districache/internal/workerclient"
)

const (
	defaultReplicationFactor = 2
	defaultRefillTTL         = 30 * time.Second
	defaultBypassLatency     = 300 * time.Millisecond
	defaultWorkerRPCTimeout  = 10 * time.Second
	defaultSpawnTimeout      = 10 * time.Second
	defaultSelfPort          = "8000"
)

// Spawner starts a local worker process for host:port. Router only ever
// calls this for a local host; a spawn attempt against a remote host fails
// before Spawner is consulted.
type Spawner func(ctx context.Context, host, port string) error

// Config configures a Router. Zero values fall back to spec defaults.
type Config struct {
	Ring              *ring.Ring
	Store             store.Store
	Partitions        *partition.Map
	Chaos             *chaos.Controller
	ClientFactory     workerclient.Factory
	Notifier          *webhook.Notifier
	Spawner           Spawner
	SelfPort          string
	ReplicationFactor int
	RefillTTL         time.Duration
	BypassLatency     time.Duration
	WorkerRPCTimeout  time.Duration
	SpawnTimeout      time.Duration
	Logger            *slog.Logger
}

// Router owns the ring, store, worker-client factory, partition map, and
// chaos controller, and implements the data, membership, and observability
// operations described by the coordinator's contract.
type Router struct {
	ring          *ring.Ring
	store         store.Store
	partitions    *partition.Map
	chaos         *chaos.Controller
	clientFactory workerclient.Factory
	notifier      *webhook.Notifier
	spawner       Spawner

	selfPort          string
	replicationFactor int
	refillTTL         time.Duration
	bypassLatency     time.Duration
	workerRPCTimeout  time.Duration
	spawnTimeout      time.Duration

	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]workerclient.Client
}

// New builds a Router. cfg.Ring and cfg.Store must be non-nil; cfg.Partitions
// and cfg.Chaos may be nil (the corresponding operations become no-ops,
// PartitionList returns nil, and ChaosStatus reports idle). cfg.ClientFactory
// defaults to workerclient.NewHTTPClient.
func New(cfg Config) *Router {
	factory := cfg.ClientFactory
	if factory == nil {
		factory = func(addr string) workerclient.Client { return workerclient.NewHTTPClient(addr) }
	}
	r := &Router{
		ring:              cfg.Ring,
		store:             cfg.Store,
		partitions:        cfg.Partitions,
		chaos:             cfg.Chaos,
		clientFactory:     factory,
		notifier:          cfg.Notifier,
		spawner:           cfg.Spawner,
		selfPort:          cfg.SelfPort,
		replicationFactor: cfg.ReplicationFactor,
		refillTTL:         cfg.RefillTTL,
		bypassLatency:     cfg.BypassLatency,
		workerRPCTimeout:  cfg.WorkerRPCTimeout,
		spawnTimeout:      cfg.SpawnTimeout,
		logger:            logging.Component(cfg.Logger, "router"),
		clients:           make(map[string]workerclient.Client),
	}
	if r.selfPort == "" {
		r.selfPort = defaultSelfPort
	}
	if r.replicationFactor <= 0 {
		r.replicationFactor = defaultReplicationFactor
	}
	if r.refillTTL <= 0 {
		r.refillTTL = defaultRefillTTL
	}
	if r.bypassLatency <= 0 {
		r.bypassLatency = defaultBypassLatency
	}
	if r.workerRPCTimeout <= 0 {
		r.workerRPCTimeout = defaultWorkerRPCTimeout
	}
	if r.spawnTimeout <= 0 {
		r.spawnTimeout = defaultSpawnTimeout
	}
	return r
}

// clientFor returns the cached worker client for addr, building one via the
// factory on first use.
func (r *Router) clientFor(addr string) workerclient.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[addr]; ok {
		return c
	}
	c := r.clientFactory(addr)
	r.clients[addr] = c
	return c
}

// dropClient discards a cached client, e.g. after RemoveNode.
func (r *Router) dropClient(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, addr)
}

// rpcContext derives a bounded context for a single worker RPC from parent.
func (r *Router) rpcContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.workerRPCTimeout)
}

// sleep blocks for d or until ctx is cancelled, whichever comes first.
func (r *Router) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func elapsedMS(start time.Time) float64 {
	return roundTo(float64(time.Since(start).Microseconds())/1000.0, 1)
}

func roundTo(v float64, decimals int) float64 {
	mult := 1.0
	for i := 0; i < decimals; i++ {
		mult *= 10
	}
	return float64(int64(v*mult+0.5)) / mult
}

func buildAddr(host, port string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%s", host, strings.TrimSpace(port))
}

func isLocalHost(host string) bool {
	switch strings.TrimSpace(strings.ToLower(host)) {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
