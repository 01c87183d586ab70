package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ldonohue/eventlive/internal/api"
	"github.com/ldonohue/eventlive/internal/config"
	"github.com/ldonohue/eventlive/internal/gateway"
	"github.com/ldonohue/eventlive/internal/lifecycle"
	"github.com/ldonohue/eventlive/internal/notify"
	"github.com/ldonohue/eventlive/internal/registry"
	"github.com/ldonohue/eventlive/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Group registry: in-memory for a single node, Redis-relayed when a
	// REDIS_URL is configured.
	var reg registry.Registry = registry.NewMemory(logger)
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		reg = registry.NewRedis(ctx, redisStore.Client(), logger)
		logger.Info("connected to Redis, using distributed group registry")
	}
	defer reg.Close()

	notifier := notify.NewNotifier(reg, pgStore, logger)
	gw := gateway.New(pgStore, reg, cfg.PingInterval, cfg.PongWait, logger)

	if cfg.LifecycleEnabled {
		job := lifecycle.NewJob(pgStore, logger)
		scheduler := lifecycle.NewScheduler(job, pgStore, notifier,
			cfg.LifecycleInterval, cfg.LifecycleTimeout, logger)
		go scheduler.Start(ctx)
	} else {
		logger.Info("lifecycle scheduler disabled")
	}

	router := api.NewRouter(gw, api.NewParticipantHandler(pgStore, notifier, logger))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()
	gw.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
