package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/aidoctor/internal/api"
	"github.com/nikhilbhutani/aidoctor/internal/api/handlers"
	"github.com/nikhilbhutani/aidoctor/internal/artifact"
	"github.com/nikhilbhutani/aidoctor/internal/audit"
	"github.com/nikhilbhutani/aidoctor/internal/cache"
	"github.com/nikhilbhutani/aidoctor/internal/config"
	"github.com/nikhilbhutani/aidoctor/internal/database"
	"github.com/nikhilbhutani/aidoctor/internal/llm"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal/stt"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal/tts"
	"github.com/nikhilbhutani/aidoctor/internal/queue"
	"github.com/nikhilbhutani/aidoctor/internal/staging"
	"github.com/nikhilbhutani/aidoctor/internal/storage"
	"github.com/nikhilbhutani/aidoctor/internal/triage"
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
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.VisionAPIKey() == "" {
		slog.Warn("vision credential missing, /api/analyze will fail", "key", cfg.VisionKeyName())
	}

	ctx := context.Background()
	checks := map[string]handlers.Pinger{}

	stager, err := staging.New(cfg.Staging.Dir)
	if err != nil {
		slog.Error("failed to create staging directory", "error", err)
		os.Exit(1)
	}

	// Redis (optional): shared artifact registry and archive queue
	var rdb *redis.Client
	var registry artifact.Registry = artifact.NewMemoryRegistry()
	if cfg.Redis.Addr != "" {
		rdb, err = cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Warn("redis unavailable, using in-memory artifact registry", "error", err)
		} else {
			defer rdb.Close()
			c := cache.NewCache(rdb, artifact.KeyPrefix)
			registry = artifact.NewRedisRegistry(c, cfg.Staging.ArtifactTTL)
			checks["redis"] = c
		}
	}

	// Database (optional): analysis history
	var recorder audit.Recorder = audit.NopRecorder{}
	var history handlers.HistoryLister
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without history", "error", err)
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db, database.MigrationSource(cfg.Database.MigrationsPath)); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
			svc := audit.NewService(db)
			recorder, history = svc, svc
			checks["database"] = db
		}
	}

	// Object storage (optional): archived responses
	archive, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Warn("object storage unavailable, archiving disabled", "error", err)
		archive = nil
	}
	var archiver triage.Archiver
	if archive != nil && rdb != nil {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		archiver = qc
	}

	transcriber, err := stt.New(cfg.STT)
	if err != nil {
		slog.Error("failed to init transcription", "error", err)
		os.Exit(1)
	}

	synth, err := tts.NewFromConfig(cfg.TTS, logger)
	if err != nil {
		slog.Error("failed to init speech synthesis", "error", err)
		os.Exit(1)
	}
	if synth.PrimaryName() == "" {
		slog.Info("no primary TTS credential, responses use the fallback provider", "fallback", synth.FallbackName())
	}

	vision := multimodal.NewVisionService(llm.NewGateway(cfg.LLM), cfg.Vision.Provider, cfg.Vision.Model)

	orch := triage.NewOrchestrator(triage.Config{
		VisionCredential: cfg.VisionAPIKey(),
		VisionKeyName:    cfg.VisionKeyName(),
		VisionModel:      cfg.Vision.Model,
		SystemPrompt:     cfg.Vision.SystemPrompt,
		STTModel:         cfg.STT.Model,
		Language:         cfg.STT.Language,
	}, triage.Deps{
		Stager:      stager,
		Transcriber: transcriber,
		Analyzer:    vision,
		Synthesizer: synth,
		Registry:    registry,
		Recorder:    recorder,
		Archiver:    archiver,
	})

	router := api.NewRouter(cfg, api.Services{
		Analyzer: orch,
		Speech:   triage.NewSpeechService(stager, synth, registry, archive, cfg.Storage.Bucket),
		History:  history,
		Checks:   checks,
	})
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "staging_dir", stager.Root())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
