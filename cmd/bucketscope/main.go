// Command bucketscope serves the object-storage browsing API with its
// listing cache and background bucket-size aggregation.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vantor/bucketscope/internal/api"
	"github.com/vantor/bucketscope/internal/browse"
	"github.com/vantor/bucketscope/internal/bucketsize"
	"github.com/vantor/bucketscope/internal/config"
	"github.com/vantor/bucketscope/internal/flags"
	"github.com/vantor/bucketscope/internal/kv"
	kvmemory "github.com/vantor/bucketscope/internal/kv/memory"
	kvredis "github.com/vantor/bucketscope/internal/kv/redis"
	"github.com/vantor/bucketscope/internal/listcache"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore/minio"
	"github.com/vantor/bucketscope/internal/scheduler"
	"github.com/vantor/bucketscope/internal/session"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New(nil).Fatalf("failed to load config: %v", err)
	}

	log := logger.New(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openKV(ctx, cfg.KV)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect key-value store: %v", err)
	}
	defer store.Close()

	connector := minio.NewConnector(cfg.ObjStore)
	sessions := session.New(store, cfg.Session, log)
	cache := listcache.New(store, cfg.Cache, log)
	agg := bucketsize.New(store, connector, cfg.BucketSize, log)
	svc := browse.New(sessions, cache, agg, connector, log)

	flagProvider := buildFlags(cfg.Flags, log)
	sched := scheduler.New(sessions, agg, flagProvider, cfg.Scheduler, log)
	sched.Start()
	defer sched.Stop()

	server := api.New(cfg.Listen, svc, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown incomplete: %v", err)
	}
}

func openKV(ctx context.Context, cfg *kv.Config) (kv.Store, error) {
	if cfg.Provider == kv.ProviderMemory {
		return kvmemory.New(), nil
	}
	return kvredis.New(ctx, cfg)
}

func buildFlags(cfg config.Flags, log *logger.Logger) flags.Provider {
	static := flags.NewStatic(cfg.Static)
	if cfg.RemoteURL == "" {
		return static
	}
	return flags.Chain{flags.NewRemote(cfg.RemoteURL, log), static}
}
