// Command cacheworker runs a single cache shard: an in-memory LRU behind an
// HTTP RPC surface, as described by the coordinator's workerclient contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tternquist/districache/internal/config"
	"github.com/tternquist/districache/internal/logging"
	"github.com/tternquist/districache/internal/lrucache"
	"github.com/tternquist/districache/internal/metrics"
	"github.com/tternquist/districache/internal/workerserver"
)

func main() {
	host := flag.String("host", "127.0.0.1", "bind host")
	port := flag.String("port", "8001", "bind port")
	capacity := flag.Int("capacity", 100, "LRU capacity")
	configPath := flag.String("config", "", "path to a YAML config overlay")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	logLevel := flag.String("log-level", "warning", "log level: debug, info, warning, error")
	flag.Parse()

	logger := logging.NewLogger(os.Stdout, logging.Config{Format: *logFormat, Level: *logLevel})
	logger = logging.Component(logger, "cacheworker")
	metrics.Init()

	sweepInterval := 5 * time.Second
	if *configPath != "" {
		cfg, err := config.Load("", *configPath)
		if err != nil {
			logging.Fatal(logger, "failed to load config", "err", err)
		}
		if cfg.Cache.Capacity > 0 {
			*capacity = cfg.Cache.Capacity
		}
		if cfg.Cache.SweepInterval.Duration > 0 {
			sweepInterval = cfg.Cache.SweepInterval.Duration
		}
	}

	cache, err := lrucache.New(*capacity, logger)
	if err != nil {
		logging.Fatal(logger, "failed to create cache", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := lrucache.NewSweeper(cache, sweepInterval, logger)
	go sweeper.Run(ctx)
	defer sweeper.Stop()

	server := workerserver.New(cache, logger)
	addr := fmt.Sprintf("%s:%s", *host, *port)
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info("cache worker listening", "addr", addr, "capacity", *capacity)

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logging.Fatal(logger, "server error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
