package lrucache

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically calls CleanupExpired on a Cache. Built on the same
// stop-channel-driven interval loop the teacher's sync.Client uses for its
// config-pull ticker, so Stop wakes an in-flight sleep promptly instead of
// waiting for a time.Ticker to fire.
type Sweeper struct {
	cache    Cache
	interval time.Duration
	log      *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper that runs CleanupExpired every interval.
func NewSweeper(cache Cache, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cache:    cache,
		interval: interval,
		log:      logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, sweeping on every interval tick, until ctx is cancelled or Stop
// is called.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-time.After(s.interval):
			removed := s.cache.CleanupExpired()
			if removed > 0 && s.log != nil {
				s.log.Debug("sweeper removed expired entries", "count", removed)
			}
		}
	}
}

// Stop signals Run to exit and waits for it to do so. Safe to call once.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
