// Package chaos implements the ring membership mutator: a background task
// that periodically removes a random node from the ring to exercise the
// router's replication and degraded-read paths.
package chaos

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/tternquist/districache/internal/apperr"
	"github.com/tternquist/districache/internal/logging"
	"github.com/tternquist/districache/internal/metrics"
	"github.com/tternquist/districache/internal/ring"
	"github.com/tternquist/districache/internal/webhook"
)

// State is the controller's run state.
type State string

const (
	Idle    State = "idle"
	Running State = "running"
)

// Config bounds the chaos loop's behavior.
type Config struct {
	MinNodes    int // Start fails if the ring does not have more members than this.
	IntervalMin int // seconds, inclusive
	IntervalMax int // seconds, inclusive
}

// Controller mutates ring membership on a random interval while Running.
// Safe for concurrent use.
type Controller struct {
	ring     *ring.Ring
	cfg      Config
	logger   *slog.Logger
	notifier *webhook.Notifier
	rng      *rand.Rand
	rngMu    sync.Mutex

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// New creates a Controller in the Idle state.
func New(r *ring.Ring, cfg Config, logger *slog.Logger, notifier *webhook.Notifier) *Controller {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Controller{
		ring:     r,
		cfg:      cfg,
		logger:   logger,
		notifier: notifier,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		state:    Idle,
	}
}

// State reports the controller's current run state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start transitions Idle -> Running and spawns the periodic strike task. It
// fails with apperr.BadRequest if the ring does not currently have more than
// MinNodes members. A no-op if already Running.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		return nil
	}
	if len(c.ring.Members()) <= c.cfg.MinNodes {
		return fmt.Errorf("chaos: only %d members, need more than %d: %w",
			len(c.ring.Members()), c.cfg.MinNodes, apperr.BadRequest)
	}
	c.state = Running
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
	return nil
}

// Stop transitions Running -> Idle. The periodic task terminates at its next
// sleep wake-up at the latest. A no-op if already Idle. Blocks until the
// task has actually exited.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	<-done
}

func (c *Controller) run(stop, done chan struct{}) {
	defer close(done)
	for {
		d := c.nextInterval()
		select {
		case <-stop:
			return
		case <-time.After(d):
		}
		select {
		case <-stop:
			return
		default:
		}
		c.strike()
	}
}

func (c *Controller) nextInterval() time.Duration {
	lo, hi := c.cfg.IntervalMin, c.cfg.IntervalMax
	if hi < lo {
		hi = lo
	}
	c.rngMu.Lock()
	span := hi - lo
	n := lo
	if span > 0 {
		n = lo + c.rng.Intn(span+1)
	}
	c.rngMu.Unlock()
	return time.Duration(n) * time.Second
}

func (c *Controller) strike() {
	members := c.ring.Members()
	if len(members) <= c.cfg.MinNodes {
		c.logger.Info("chaos: skipping strike, at or below floor",
			"members", len(members), "min_nodes", c.cfg.MinNodes)
		return
	}
	c.rngMu.Lock()
	victim := members[c.rng.Intn(len(members))]
	c.rngMu.Unlock()

	c.ring.Remove(victim)
	c.logger.Info("chaos: struck node", "node", victim, "remaining", len(members)-1)
	metrics.RecordChaosStrike()
	c.notifier.FireNodeKilled(victim, len(members)-1)
}
