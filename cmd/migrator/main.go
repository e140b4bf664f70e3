package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amelnyk/slotly-notify/internal/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("migrator ")

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	dsn, err := databaseURL()
	if err != nil {
		log.Fatalf("resolve database url: %v", err)
	}

	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatalf("parse database url: %v", err)
	}
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol // allow multi-statement migrations
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "slotly-notify-migrator"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()

	if err := ensureLedger(ctx, pool); err != nil {
		log.Fatalf("ensure schema_migrations: %v", err)
	}

	pending, err := pendingMigrations(ctx, pool, migrationsDir)
	if err != nil {
		log.Fatalf("collect pending migrations: %v", err)
	}
	if len(pending) == 0 {
		log.Print("schema is up to date")
		return
	}

	log.Printf("pending: %s", strings.Join(pending, ", "))

	for _, name := range pending {
		if err := apply(ctx, pool, migrationsDir, name); err != nil {
			log.Fatalf("apply %s: %v", name, err)
		}
	}

	log.Printf("schema updated (applied=%d)", len(pending))
}

// databaseURL prefers an explicit DATABASE_URL and otherwise assembles the
// DSN from the same DB_* settings the gateway reads, so one .env serves
// both binaries.
func databaseURL() (string, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode,
	), nil
}

func ensureLedger(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            name TEXT PRIMARY KEY,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
    `)
	return err
}

// pendingMigrations lists the *.up.sql files not yet recorded in the
// ledger, in lexical (version) order.
func pendingMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	applied, err := appliedSet(ctx, pool)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		if applied[name] {
			continue
		}
		pending = append(pending, name)
	}

	sort.Strings(pending)
	return pending, nil
}

func appliedSet(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migration name: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, pool *pgxpool.Pool, dir, name string) error {
	contents, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	start := time.Now()

	if _, err := pool.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	if _, err := pool.Exec(ctx,
		"INSERT INTO schema_migrations(name) VALUES($1) ON CONFLICT DO NOTHING", name,
	); err != nil {
		return fmt.Errorf("record in ledger: %w", err)
	}

	log.Printf("applied %s in %s", name, time.Since(start).Round(time.Millisecond))
	return nil
}
