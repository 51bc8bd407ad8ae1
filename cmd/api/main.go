package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Auphere/places/internal/adapters/directory"
	"github.com/Auphere/places/internal/adapters/http"
	natsadapter "github.com/Auphere/places/internal/adapters/nats"
	"github.com/Auphere/places/internal/adapters/postgres"
	"github.com/Auphere/places/internal/adapters/valkey"
	"github.com/Auphere/places/internal/core/ports"
	"github.com/Auphere/places/internal/core/usecases"
	"github.com/Auphere/places/internal/pkg/config"
	"github.com/Auphere/places/internal/pkg/logging"
	"github.com/Auphere/places/internal/pkg/ratelimit"
	"github.com/Auphere/places/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("places-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS
	var events ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		events = nc
	}

	// Upstream directory client, gated by the shared rate limiter
	client := directory.NewClient(directory.Options{
		BaseURL: cfg.Directory.BaseURL,
		APIKey:  cfg.Directory.APIKey,
		Timeout: cfg.Directory.Timeout(),
		PageCap: cfg.Directory.PageCap,
	})
	gate := ratelimit.NewGate(cfg.Directory.MinCallInterval())

	// Repos
	placeRepo := postgres.NewPlaceRepo(db)
	runRepo := postgres.NewSyncRunRepo(db)

	// Use cases
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}
	placeSvc := usecases.NewPlaceService(placeRepo, cacheSvc, usecases.SearchLimits{
		MaxPageSize:     cfg.Search.MaxPageSize,
		DefaultPageSize: cfg.Search.DefaultPageSize,
		CacheTTLSeconds: cfg.Search.CacheTTLSeconds,
	})
	syncSvc := usecases.NewSyncService(placeRepo, runRepo, client, gate, events,
		cfg.Regions.Registry(), usecases.SyncPolicy{
			CellSizeKM:       cfg.Sync.CellSizeKM,
			RadiusMeters:     cfg.Sync.RadiusMeters,
			OverlapFraction:  cfg.Sync.OverlapFraction,
			MaxRetries:       cfg.Directory.MaxRetries,
			BackoffBase:      cfg.Directory.BackoffBase(),
			RateLimitBudget:  cfg.Directory.RateLimitBudget,
			RateLimitBackoff: cfg.Directory.RateLimitBackoff(),
		})

	deps := &http.Dependencies{
		Places: placeSvc,
		Sync:   syncSvc,
		DB:     db,
		Cache:  cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Auphere Places API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.auphere.app",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
