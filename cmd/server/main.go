/*
main.go - Application entry point

PURPOSE:

	Initializes and starts the academy leave server.
	Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
 1. Load configuration (.env, environment, then command-line flags)
 2. Open the store selected by DB_DRIVER
 3. Seed the policy from POLICY_FILE when set
 4. Create service, API handler and router
 5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):

	-port    HTTP server port (APP_PORT, default 8080)
	-driver  sqlite | postgres | memory (DB_DRIVER, default sqlite)
	-db      SQLite database path (DB_PATH, default leave.db)
	         Use ":memory:" for an in-memory database
	-policy  Policy document to load on startup (POLICY_FILE)

ENVIRONMENT:

	APP_PORT, APP_ENV, LOG_LEVEL, CORS_ORIGINS, DB_DRIVER, DB_PATH,
	DATABASE_URL, POLICY_FILE

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop accepting new connections
	2. Wait for active requests to complete (30s timeout)
	3. Close database connection
	4. Exit

EXAMPLES:

	# Run with file database
	./server -db="./data/leave.db"

	# Run against PostgreSQL (apply cmd/migrate first)
	DATABASE_URL=postgres://localhost/leave ./server -driver=postgres

	# Run in memory with a quarterly policy
	./server -driver=memory -policy=policies/quarterly.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment settings
  - store/: Storage drivers
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/academy-leave/api"
	"github.com/warp/academy-leave/config"
	"github.com/warp/academy-leave/factory"
	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/store/memory"
	"github.com/warp/academy-leave/store/postgres"
	"github.com/warp/academy-leave/store/sqlite"
)

func main() {
	port := flag.Int("port", 0, "HTTP server port")
	driver := flag.String("driver", "", "storage driver: sqlite, postgres or memory")
	dbPath := flag.String("db", "", "SQLite database path")
	policyFile := flag.String("policy", "", "policy document (YAML or JSON) to load on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}
	if *driver != "" {
		cfg.Database.Driver = *driver
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *policyFile != "" {
		cfg.PolicyFile = *policyFile
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := api.NewLogger(os.Stdout, cfg.SlogLevel(), cfg.App.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer closeStore()

	svc := leave.NewService(store, leave.WithLogger(logger))

	if cfg.PolicyFile != "" {
		p, err := factory.NewPolicyFactory().LoadFile(cfg.PolicyFile)
		if err != nil {
			return err
		}
		if _, err := svc.UpdatePolicy(ctx, p); err != nil {
			return fmt.Errorf("seed policy: %w", err)
		}
		logger.Info("policy loaded", "file", cfg.PolicyFile, "quota_type", p.QuotaType)
	}

	handler := api.NewHandler(svc, store, api.WithHandlerLogger(logger))
	router := api.NewRouter(handler, logger, cfg.App.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStore returns the configured store and its cleanup func.
func openStore(ctx context.Context, db config.DatabaseConfig) (leave.Store, func(), error) {
	switch db.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, db.URL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.DriverMemory:
		return memory.New(), func() {}, nil
	default:
		s, err := sqlite.New(db.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
}
