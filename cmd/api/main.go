package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/odysseyatlas/atlas/internal/adapters/http"
	"github.com/odysseyatlas/atlas/internal/adapters/mapbox"
	natsadapter "github.com/odysseyatlas/atlas/internal/adapters/nats"
	"github.com/odysseyatlas/atlas/internal/adapters/postgres"
	"github.com/odysseyatlas/atlas/internal/adapters/temporal"
	"github.com/odysseyatlas/atlas/internal/adapters/valkey"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/core/usecases"
	"github.com/odysseyatlas/atlas/internal/pkg/config"
	"github.com/odysseyatlas/atlas/internal/pkg/logging"
	"github.com/odysseyatlas/atlas/internal/pkg/metrics"
	"github.com/odysseyatlas/atlas/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("atlas-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, os.Getenv("LOG_FORMAT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				_ = shutdown(sctx)
			}()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache is optional; services run uncached without it.
	var cacheSvc ports.CacheService
	var cachePing http.Pinger
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc, cachePing = cache, cache
	}

	// NATS is optional; without it tours are not announced and /ws is closed.
	var publisher ports.EventPublisher
	natsConn, err := natsadapter.Connect(cfg.NATS.URL, "atlas-api")
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer natsConn.Drain()
		if pub, err := natsadapter.NewPublisher(natsConn); err != nil {
			slog.Warn("jetstream unavailable", "error", err)
		} else {
			publisher = pub
		}
	}

	// Temporal is optional; without it walks can be previewed but not started.
	var scheduler ports.WalkScheduler
	if cfg.Temporal.HostPort != "" {
		tc, err := temporal.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			slog.Warn("temporal unavailable", "error", err)
		} else {
			defer tc.Close()
			scheduler = temporal.NewScheduler(tc, cfg.Temporal.TaskQueue)
		}
	}

	if cfg.Mapbox.AccessToken == "" {
		slog.Warn("mapbox access token not set, directions requests will be rejected upstream")
	}
	directions := mapbox.NewDirections(cfg.Mapbox, cacheSvc)
	staticMaps := mapbox.NewStaticMap(cfg.Mapbox)

	// Use cases
	citySvc := usecases.NewCityService(postgres.NewCityRepo(db), cacheSvc)
	tourSvc := usecases.NewTourService(postgres.NewTourRepo(db), citySvc, directions, staticMaps, publisher)
	walkSvc := usecases.NewWalkService(tourSvc, scheduler, cfg.Walk.StrideMeters, cfg.Walk.Interval)

	if natsConn != nil {
		if sub, err := natsadapter.NewSubscriber(natsConn); err != nil {
			slog.Warn("walk status subscriber unavailable", "error", err)
		} else if err := sub.SubscribeWalkStatus(ctx, walkSvc.RecordStatus); err != nil {
			slog.Warn("subscribe walk status", "error", err)
		} else {
			defer sub.Close()
		}
	}

	deps := &http.Dependencies{
		Cities:         citySvc,
		Tours:          tourSvc,
		Walks:          walkSvc,
		NATS:           natsConn,
		DB:             db,
		Cache:          cachePing,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		RateLimit:      cfg.Server.RateLimit,
		Version:        version,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "Odyssey Atlas API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.CORSOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
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

// reportPoolStats refreshes the pool gauges until ctx ends.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
