// Command cacherouter runs the coordinator: consistent-hash ring, read/write
// paths, membership, chaos, and partition simulation, behind an HTTP RPC
// surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tternquist/districache/internal/chaos"
	"github.com/tternquist/districache/internal/config"
	"github.com/tternquist/districache/internal/logging"
	"github.com/tternquist/districache/internal/metrics"
	"github.com/tternquist/districache/internal/partition"
	"github.com/tternquist/districache/internal/ring"
	"github.com/tternquist/districache/internal/router"
	"github.com/tternquist/districache/internal/routerserver"
	"github.com/tternquist/districache/internal/store"
	"github.com/tternquist/districache/internal/store/memstore"
	"github.com/tternquist/districache/internal/store/redisstore"
	"github.com/tternquist/districache/internal/webhook"
)

func main() {
	host := flag.String("host", "127.0.0.1", "bind host")
	port := flag.String("port", "8000", "bind port")
	storeFlag := flag.String("store", "memory", `"memory" or a redis address, e.g. "redis://127.0.0.1:6379"`)
	configPath := flag.String("config", "", "path to a YAML config overlay")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	logLevel := flag.String("log-level", "warning", "log level: debug, info, warning, error")
	flag.Parse()

	logger := logging.NewLogger(os.Stdout, logging.Config{Format: *logFormat, Level: *logLevel})
	logger = logging.Component(logger, "cacherouter")
	metrics.Init()

	cfg := config.Config{}
	if *configPath != "" {
		loaded, err := config.Load("", *configPath)
		if err != nil {
			logging.Fatal(logger, "failed to load config", "err", err)
		}
		cfg = loaded
	}

	backingStore := buildStore(*storeFlag, cfg, logger)

	virtualNodes := cfg.Ring.VirtualNodesPerPhysical
	if virtualNodes <= 0 {
		virtualNodes = 10
	}
	hashRing := ring.New(virtualNodes)
	partitions := partition.New()

	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Timeout.Duration, cfg.Webhook.Target, cfg.Webhook.RateLimitPerMinute)
	}

	var chaosController *chaos.Controller
	if cfg.Chaos.MinNodes > 0 || cfg.Chaos.IntervalMin.Duration > 0 {
		chaosController = chaos.New(hashRing, chaos.Config{
			MinNodes:    cfg.Chaos.MinNodes,
			IntervalMin: int(cfg.Chaos.IntervalMin.Duration.Seconds()),
			IntervalMax: int(cfg.Chaos.IntervalMax.Duration.Seconds()),
		}, logger, notifier)
	}

	selfPort := cfg.Router.SelfPort
	if selfPort == "" {
		selfPort = *port
	}

	rt := router.New(router.Config{
		Ring:              hashRing,
		Store:             backingStore,
		Partitions:        partitions,
		Chaos:             chaosController,
		Notifier:          notifier,
		Spawner:           spawnWorker(logger),
		SelfPort:          selfPort,
		ReplicationFactor: cfg.Router.ReplicationFactor,
		RefillTTL:         cfg.Router.RefillTTL.Duration,
		BypassLatency:     cfg.Router.BypassLatency.Duration,
		WorkerRPCTimeout:  cfg.Router.WorkerRPCTimeout.Duration,
		SpawnTimeout:      cfg.Router.SpawnTimeout.Duration,
		Logger:            logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := routerserver.New(rt, logger)
	addr := fmt.Sprintf("%s:%s", *host, *port)
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info("router listening", "addr", addr, "store", *storeFlag)

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logging.Fatal(logger, "server error", "err", err)
	}

	if chaosController != nil {
		chaosController.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}

func buildStore(storeFlag string, cfg config.Config, logger *slog.Logger) store.Store {
	if strings.HasPrefix(storeFlag, "redis://") || cfg.Store.Kind == "redis" {
		addr := strings.TrimPrefix(storeFlag, "redis://")
		if !strings.HasPrefix(storeFlag, "redis://") {
			addr = cfg.Store.Address
		}
		logger.Info("using redis store", "address", addr)
		return redisstore.NewFromAddr(addr)
	}
	logger.Info("using in-memory store")
	return memstore.New()
}

// spawnWorker builds a Spawner that starts a local cacheworker process via
// the cacheworker binary found on PATH, mirroring the reference
// implementation's self-exec of a node server module.
func spawnWorker(logger *slog.Logger) router.Spawner {
	return func(ctx context.Context, host, port string) error {
		binPath, err := exec.LookPath("cacheworker")
		if err != nil {
			return fmt.Errorf("cacherouter: cacheworker binary not found on PATH: %w", err)
		}
		cmd := exec.CommandContext(context.Background(), binPath, "--host", host, "--port", port)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("cacherouter: spawn cacheworker: %w", err)
		}
		go func() {
			if err := cmd.Wait(); err != nil {
				logger.Warn("spawned worker exited", "port", port, "err", err)
			}
		}()
		return nil
	}
}
