package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/voteboard/voteboard/internal/broadcast"
	"github.com/voteboard/voteboard/internal/config"
	"github.com/voteboard/voteboard/internal/database"
	"github.com/voteboard/voteboard/internal/logging"
	"github.com/voteboard/voteboard/internal/platform/retry"
	"github.com/voteboard/voteboard/internal/server"
	"github.com/voteboard/voteboard/internal/tally"
	"github.com/voteboard/voteboard/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateResult(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func setupDB(ctx context.Context, cfg *config.Config, clock clockwork.Clock) *pgxpool.Pool {
	policy := retry.Policy{
		MaxAttempts: cfg.ConnectAttempts,
		Delay:       cfg.ConnectBackoff,
		OnRetry: func(attempt int, err error) {
			slog.Warn("Database not ready, retrying", "attempt", attempt, "error", err)
		},
	}

	pool, err := retry.Do(ctx, clock, policy, func() (*pgxpool.Pool, error) {
		return database.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return pool
}

func runGracefulShutdown(srv *server.ResultServer, broadcaster *broadcast.Broadcaster, cancelRefresh context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()
		cancelRefresh()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Result server starting", "env", cfg.AppEnv, "port", cfg.ResultPort, "version", build.Version, "commit", build.Commit)

	ctx, cancelRefresh := context.WithCancel(context.Background())
	defer cancelRefresh()

	pool := setupDB(ctx, cfg, clock)
	defer pool.Close()

	repo := database.NewVoteRepo(pool, clock)

	cache := tally.NewCache(repo, cfg.RefreshInterval, clock)
	go cache.Run(ctx)

	broadcaster := broadcast.NewBroadcaster(cache, cfg.BroadcastInterval, cfg.MaxStreamClients, clock)
	srv := server.NewResultServer(cfg, cache, broadcaster, repo, clock)

	done := runGracefulShutdown(srv, broadcaster, cancelRefresh)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
