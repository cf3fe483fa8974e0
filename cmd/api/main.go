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

	"github.com/samirrijal/baenkli/internal/adapters/http"
	minioadapter "github.com/samirrijal/baenkli/internal/adapters/minio"
	natsadapter "github.com/samirrijal/baenkli/internal/adapters/nats"
	"github.com/samirrijal/baenkli/internal/adapters/postgres"
	"github.com/samirrijal/baenkli/internal/adapters/valkey"
	"github.com/samirrijal/baenkli/internal/core/ports"
	"github.com/samirrijal/baenkli/internal/core/usecases"
	"github.com/samirrijal/baenkli/internal/pkg/config"
	"github.com/samirrijal/baenkli/internal/pkg/logging"
	"github.com/samirrijal/baenkli/internal/pkg/metrics"
	"github.com/samirrijal/baenkli/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("baenkli-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Storage.Validate(); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

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
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Photo bucket
	photos, err := minioadapter.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	deps := &http.Dependencies{DB: db, Photos: photos}

	// Cache, optional
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
	if err != nil {
		slog.Warn("valkey unavailable, serving uncached", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS, optional: without it board sessions only see their own changes
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
		deps.NATS = pub.Conn()
		deps.Events = natsadapter.NewSubscriber(pub.Conn())
	}

	deps.Benches = usecases.NewBenchService(postgres.NewBenchRepo(db.Pool), photos, cache, events)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB << 20, // two photos plus form fields
		AppName:      "Baenkli API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// DB pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", http.Version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
