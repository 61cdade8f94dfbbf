package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/worker"

	natsadapter "github.com/odysseyatlas/atlas/internal/adapters/nats"
	"github.com/odysseyatlas/atlas/internal/adapters/postgres"
	"github.com/odysseyatlas/atlas/internal/adapters/temporal"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/core/usecases"
	"github.com/odysseyatlas/atlas/internal/pkg/config"
	"github.com/odysseyatlas/atlas/internal/pkg/logging"
	"github.com/odysseyatlas/atlas/internal/workflows"
)

// walker runs the Temporal worker that executes simulated walks.
func main() {
	cfg, err := config.Load("atlas-walker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	if cfg.Temporal.HostPort == "" {
		log.Fatal("temporal.host_port is required for the walker")
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Without NATS, steps are only logged.
	var publisher ports.EventPublisher
	nc, err := natsadapter.Connect(cfg.NATS.URL, "atlas-walker")
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Drain()
		if pub, err := natsadapter.NewPublisher(nc); err != nil {
			slog.Warn("jetstream unavailable", "error", err)
		} else {
			publisher = pub
		}
	}

	// The walker only reads tours, so no directions or map clients are wired.
	cities := usecases.NewCityService(postgres.NewCityRepo(db), nil)
	tours := usecases.NewTourService(postgres.NewTourRepo(db), cities, nil, nil, nil)
	walks := usecases.NewWalkService(tours, nil, cfg.Walk.StrideMeters, cfg.Walk.Interval)

	c, err := temporal.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.WalkWorkflow)
	w.RegisterActivity(&workflows.WalkActivities{
		Walks:     walks,
		Publisher: publisher,
	})

	slog.Info("walker worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
