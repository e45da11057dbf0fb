package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/quotehub/internal/app"
	"github.com/rickgao/quotehub/internal/config"
	"github.com/rickgao/quotehub/internal/database"
	"github.com/rickgao/quotehub/internal/httpapi"
	"github.com/rickgao/quotehub/internal/hub"
	"github.com/rickgao/quotehub/internal/redisbridge"
	"github.com/rickgao/quotehub/internal/snapshot"
	"github.com/rickgao/quotehub/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/quotehub.yaml", "path to config file")
	flag.Parse()

	// A missing .env is fine; the config file may carry everything.
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting quotehub",
		append(version.LogAttrs(), "config", *configPath, "instance_id", cfg.Instance.ID)...,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	pipeline := app.NewPipeline(cfg.Sources, logger)
	opts := app.HubOptions(cfg, logger)

	// Snapshot persistence
	var store *snapshot.Store
	if cfg.Snapshot.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Snapshot.Database.Host,
			"port", cfg.Snapshot.Database.Port,
			"database", cfg.Snapshot.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Snapshot.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store = snapshot.NewStore(snapshot.Config{FlushInterval: cfg.Snapshot.FlushInterval}, pool, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create snapshot schema", "error", err)
			os.Exit(1)
		}
		if err := store.Start(ctx); err != nil {
			logger.Error("failed to start snapshot store", "error", err)
			os.Exit(1)
		}
		opts = append(opts, hub.WithSeeder(store), hub.WithNotifier(store))
	}

	// Redis fan-out
	var bridge *redisbridge.Bridge
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err, "addr", cfg.Redis.Addr)
			os.Exit(1)
		}

		bridge = redisbridge.New(redisbridge.Config{
			ChannelPrefix: cfg.Redis.ChannelPrefix,
			KeyPrefix:     cfg.Redis.KeyPrefix,
			KeyTTL:        cfg.Redis.KeyTTL,
		}, rdb, logger)
		if err := bridge.Start(ctx); err != nil {
			logger.Error("failed to start redis bridge", "error", err)
			os.Exit(1)
		}
		opts = append(opts, hub.WithNotifier(bridge))
	}

	h := hub.New(app.HubConfig(cfg.Hub), pipeline, opts...)
	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}

	watchlist, err := app.StartWatchlist(ctx, h, cfg.Hub.Symbols, 0, logger)
	if err != nil {
		logger.Error("failed to subscribe watchlist", "error", err)
		os.Exit(1)
	}

	server := httpapi.NewServer(cfg.HTTP.Port, h, logger)
	server.Start()

	logger.Info("quotehub running",
		"instance_id", cfg.Instance.ID,
		"port", cfg.HTTP.Port,
		"stream", cfg.Stream.URL != "",
		"snapshot", cfg.Snapshot.Enabled,
		"redis", cfg.Redis.Enabled,
		"watchlist", len(watchlist.Symbols()),
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}
	if err := watchlist.Close(); err != nil {
		logger.Warn("watchlist shutdown", "error", err)
	}
	if err := h.Stop(shutdownCtx); err != nil {
		logger.Warn("hub shutdown", "error", err)
	}
	if bridge != nil {
		if err := bridge.Stop(shutdownCtx); err != nil {
			logger.Warn("redis bridge shutdown", "error", err)
		}
	}
	if store != nil {
		if err := store.Stop(shutdownCtx); err != nil {
			logger.Warn("snapshot store shutdown", "error", err)
		}
	}

	logger.Info("quotehub stopped")
}
