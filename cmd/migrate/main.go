// Command migrate applies the PostgreSQL schema for the leave store.
//
//	migrate [-dir store/postgres/migrations] [-database postgres://...] up|down|drop|version
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/warp/academy-leave/config"
)

func main() {
	var (
		migrationsDir = flag.String("dir", "store/postgres/migrations", "directory containing migration files")
		dsn           = flag.String("database", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	url := *dsn
	if url == "" {
		os.Setenv("DB_DRIVER", config.DriverPostgres)
		cfg, err := config.Load()
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		url = cfg.Database.URL
	}

	if err := runMigration(logger, action, *migrationsDir, url); err != nil {
		logger.Error("migration failed", "action", action, "error", err)
		os.Exit(1)
	}
	logger.Info("migration completed", "action", action)
}

func runMigration(logger *slog.Logger, action, dir, dsn string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}
