package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odysseyatlas/atlas/internal/adapters/postgres"
	"github.com/odysseyatlas/atlas/internal/adapters/valkey"
	"github.com/odysseyatlas/atlas/internal/core/domain"
	"github.com/odysseyatlas/atlas/internal/core/ports"
	"github.com/odysseyatlas/atlas/internal/core/usecases"
	"github.com/odysseyatlas/atlas/internal/pkg/config"
	"github.com/odysseyatlas/atlas/internal/pkg/logging"
)

// Manifest is the city catalog file loaded by seed.
type Manifest struct {
	Source string        `json:"source"`
	Cities []domain.City `json:"cities"`
}

// usage: seed [manifest.json] [city,city,...]
func main() {
	cfg, err := config.Load("atlas-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(os.Getenv("LOG_LEVEL"), "text")

	manifestPath := "data/cities.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	manifest, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("manifest: %v", err)
	}

	filter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, name := range strings.Split(os.Args[2], ",") {
			filter[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 8)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Upserts invalidate cached cities when the cache is reachable.
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, cache not invalidated", "error", err)
	} else {
		defer c.Close()
		cache = c
	}

	svc := usecases.NewCityService(postgres.NewCityRepo(db), cache)

	slog.Info("seeding cities", "count", len(manifest.Cities), "source", manifest.Source)

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
		sem    = make(chan struct{}, 4)
	)
	for i := range manifest.Cities {
		city := manifest.Cities[i]
		if len(filter) > 0 && !filter[strings.ToLower(city.Name)] {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := svc.Upsert(ctx, &city); err != nil {
				failed.Add(1)
				slog.Error("seed city", "city", city.Name, "error", err)
				return
			}
			slog.Info("seeded", "city", city.Name, "id", city.ID, "landmarks", len(city.Landmarks))
		}()
	}
	wg.Wait()

	if n := failed.Load(); n > 0 {
		log.Fatalf("%d cities failed", n)
	}
	slog.Info("seed complete")
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(m.Cities) == 0 {
		return nil, fmt.Errorf("%s lists no cities", path)
	}
	return &m, nil
}
