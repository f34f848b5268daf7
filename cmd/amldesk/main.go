package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/savegress/amldesk/internal/api"
	"github.com/savegress/amldesk/internal/cache"
	"github.com/savegress/amldesk/internal/casework"
	"github.com/savegress/amldesk/internal/config"
	"github.com/savegress/amldesk/internal/dashboard"
	"github.com/savegress/amldesk/internal/ledger"
	"github.com/savegress/amldesk/internal/store"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting amldesk",
		zap.String("environment", cfg.Server.Environment),
		zap.String("driver", cfg.Database.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Record store
	clients, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	defer clients.Close()

	// Redis cache and audit mirror
	redisCache, err := cache.New(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Audit trail
	audit := ledger.NewAuditTrail(cfg.Ledger.AuditCapacity,
		ledger.WithMirror(redisCache),
		ledger.WithLogger(logger),
	)
	if n, err := audit.Restore(ctx); err != nil {
		logger.Warn("audit trail restore failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("audit trail restored", zap.Int("entries", n))
	}

	// Case workflow
	cases := casework.NewHandler(&casework.Config{
		MaxCommentLength: cfg.Ledger.MaxCommentLength,
		CommentRetention: cfg.Ledger.CommentRetention,
	}, clients, audit, logger)

	// Realtime hub
	hub := api.NewHub(cfg.Server.AllowedOrigins, logger)
	go hub.Run()

	// Dashboard
	dash, err := dashboard.NewService(&cfg.Dashboard, clients, cfg.Scoring, logger)
	if err != nil {
		logger.Fatal("failed to create dashboard service", zap.Error(err))
	}
	dash.SetCache(redisCache)
	dash.Subscribe(hub)
	if err := dash.Start(ctx); err != nil {
		logger.Fatal("failed to start dashboard service", zap.Error(err))
	}

	// Create API server
	server := api.NewServer(cfg, api.Deps{
		Store:      clients,
		Cases:      cases,
		Audit:      audit,
		Dashboard:  dash,
		Hub:        hub,
		Cache:      redisCache,
		Thresholds: cfg.Scoring,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("amldesk API listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down amldesk")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	dash.Stop()
	hub.Stop()

	logger.Info("amldesk stopped")
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("AMLDESK_CONFIG"); path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.ClientStore, error) {
	opts := []store.Option{
		store.WithThresholds(cfg.Scoring),
		store.WithLogger(logger),
	}

	switch cfg.Database.Driver {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.Database.URL, opts...)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		lite, err := store.NewSQLite(cfg.Database.SQLitePath, opts...)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store opened", zap.String("path", lite.Path()))
		return lite, nil
	default:
		mem := store.NewMemory(opts...)
		if cfg.Demo.Clients > 0 {
			mem.Seed(store.DemoClients(cfg.Demo.Clients, cfg.Demo.Seed, time.Now())...)
			logger.Info("seeded demo clients", zap.Int("count", cfg.Demo.Clients))
		}
		return mem, nil
	}
}
