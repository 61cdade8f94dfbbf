package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odysseyatlas/atlas/internal/pkg/config"
)

const migrationsDir = "migrations"

// usage: migrate <up|down|status>
// up applies every pending NNN_name.up.sql in order; down reverts the latest.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	cfg, err := config.Load("atlas-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("schema_migrations: %v", err)
	}

	versions, err := listVersions(migrationsDir)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		log.Fatalf("applied migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		n := 0
		for _, v := range versions {
			if applied[v] {
				continue
			}
			if err := apply(ctx, pool, v, "up"); err != nil {
				log.Fatalf("%s: %v", v, err)
			}
			fmt.Printf("UP    %s\n", v)
			n++
		}
		log.Printf("%d migrations applied", n)

	case "down":
		for i := len(versions) - 1; i >= 0; i-- {
			if v := versions[i]; applied[v] {
				if err := apply(ctx, pool, v, "down"); err != nil {
					log.Fatalf("%s: %v", v, err)
				}
				fmt.Printf("DOWN  %s\n", v)
				return
			}
		}
		log.Println("nothing to revert")

	case "status":
		for _, v := range versions {
			state := "pending"
			if applied[v] {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, v)
		}

	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// listVersions returns migration names ("001_catalog") sorted ascending.
func listVersions(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(files))
	for _, f := range files {
		versions = append(versions, strings.TrimSuffix(filepath.Base(f), ".up.sql"))
	}
	sort.Strings(versions)
	return versions, nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// apply runs one migration file and records it in a single transaction.
func apply(ctx context.Context, pool *pgxpool.Pool, version, direction string) error {
	sql, err := os.ReadFile(filepath.Join(migrationsDir, version+"."+direction+".sql"))
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			return err
		}
		if direction == "up" {
			_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
		} else {
			_, err = tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
		}
		return err
	})
}
