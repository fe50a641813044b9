package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/voteboard/voteboard/internal/config"
	"github.com/voteboard/voteboard/internal/database"
	"github.com/voteboard/voteboard/internal/logging"
	"github.com/voteboard/voteboard/internal/redis"
	"github.com/voteboard/voteboard/internal/version"
	"github.com/voteboard/voteboard/internal/worker"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Worker starting", "env", cfg.AppEnv, "version", build.Version, "commit", build.Commit)

	connectQueue := func(ctx context.Context) (worker.Queue, error) {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return redis.NewConsumer(client, cfg.QueuePollTimeout), nil
	}

	connectStore := func(ctx context.Context) (worker.Store, error) {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return database.NewVoteRepo(pool, clock), nil
	}

	w := worker.New(connectQueue, connectStore, worker.Config{
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectBackoff:  cfg.ConnectBackoff,
		ReconnectPause:  cfg.ReconnectPause,
	}, clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		slog.Error("Worker exited", "error", err)
		os.Exit(1)
	}

	slog.Info("Worker stopped")
}
