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

	"github.com/samirrijal/baenkli/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("baenkli-migrate")
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
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		migrateUp(ctx, pool)
	case "down":
		migrateDown(ctx, pool)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// migrationFiles returns the versions found in migrationsDir, ascending.
// 002_benches.up.sql has version "002_benches".
func migrationFiles(direction string) []string {
	matches, err := filepath.Glob(filepath.Join(migrationsDir, "*."+direction+".sql"))
	if err != nil {
		log.Fatalf("glob migrations: %v", err)
	}
	versions := make([]string, 0, len(matches))
	for _, m := range matches {
		versions = append(versions, strings.TrimSuffix(filepath.Base(m), "."+direction+".sql"))
	}
	sort.Strings(versions)
	return versions
}

func applied(ctx context.Context, pool *pgxpool.Pool) map[string]bool {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}
	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done
}

func migrateUp(ctx context.Context, pool *pgxpool.Pool) {
	done := applied(ctx, pool)
	n := 0
	for _, v := range migrationFiles("up") {
		if done[v] {
			continue
		}
		run(ctx, pool, v, "up", `INSERT INTO schema_migrations (version) VALUES ($1)`)
		n++
	}
	log.Printf("%d migrations applied", n)
}

// migrateDown rolls back the most recent migration.
func migrateDown(ctx context.Context, pool *pgxpool.Pool) {
	done := applied(ctx, pool)
	versions := migrationFiles("down")
	for i := len(versions) - 1; i >= 0; i-- {
		if done[versions[i]] {
			run(ctx, pool, versions[i], "down", `DELETE FROM schema_migrations WHERE version = $1`)
			return
		}
	}
	log.Println("nothing to roll back")
}

// run executes one migration file and records it in the same transaction.
func run(ctx context.Context, pool *pgxpool.Pool, version, direction, record string) {
	f := filepath.Join(migrationsDir, version+"."+direction+".sql")
	data, err := os.ReadFile(f)
	if err != nil {
		log.Fatalf("read %s: %v", f, err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, record, version)
		return err
	})
	if err != nil {
		log.Fatalf("exec %s: %v", f, err)
	}

	fmt.Printf("OK  %s\n", f)
}
