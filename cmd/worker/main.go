package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/aidoctor/internal/artifact"
	"github.com/nikhilbhutani/aidoctor/internal/cache"
	"github.com/nikhilbhutani/aidoctor/internal/config"
	"github.com/nikhilbhutani/aidoctor/internal/queue"
	"github.com/nikhilbhutani/aidoctor/internal/queue/workers"
	"github.com/nikhilbhutani/aidoctor/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if cfg.Redis.Addr == "" || cfg.Storage.Backend == "" {
		slog.Error("worker needs REDIS_ADDR and STORAGE_BACKEND")
		os.Exit(1)
	}

	ctx := context.Background()

	rdb, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	registry := artifact.NewRedisRegistry(cache.NewCache(rdb, artifact.KeyPrefix), cfg.Staging.ArtifactTTL)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("object storage unavailable", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	handlers := queue.NewHandlersRegistry()

	archiveWorker := workers.NewArchiveWorker(store, cfg.Storage.Bucket, registry)
	handlers.Register(queue.TypeArtifactArchive, asynq.HandlerFunc(archiveWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 4, "storage", cfg.Storage.Backend)
	if err := srv.Run(handlers.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
