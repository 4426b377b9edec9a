/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment, then apply flags
  2. Initialize the zerolog logger
  3. Initialize SQLite store
  4. Seed line types and rulesets from -rulesets (JSON or YAML)
  5. Start the monthly payslip generation scheduler (when configured)
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port      HTTP server port (PAYROLL_PORT, default: 8080)
  -db        SQLite database path (PAYROLL_DB, default: payroll.db)
             Use ":memory:" for in-memory database
  -rulesets  Catalog of line types and rulesets to load at startup
             (PAYROLL_RULESETS)

ENVIRONMENT:
  See config/config.go for the full list (log level and format, CORS
  origins, generation schedule and line type, shutdown timeout).

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the scheduler, waiting for a running generation
  3. Wait for active requests to complete (PAYROLL_SHUTDOWN_TIMEOUT)
  4. Close database connection

EXAMPLES:
  # Run with file database and seed rulesets
  ./server -db="./data/payroll.db" -rulesets=./rulesets.yaml

  # Generate last month's payslips on the 1st at 06:00
  PAYROLL_GENERATE_LINE_TYPE=normal ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Payslip generation schedule
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/logging"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "payroll server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.RuleSets, "rulesets", cfg.RuleSets, "line types and rulesets file to load (JSON or YAML)")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Log, os.Stdout)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	svc := payroll.NewService(store, log)

	if cfg.RuleSets != "" {
		if err := seedRuleSets(context.Background(), svc, cfg.RuleSets, log); err != nil {
			return err
		}
	}

	scheduler := api.NewGenerationScheduler(svc, cfg.GenerateSchedule, cfg.GenerateLineType, log)
	if err := scheduler.Start(); err != nil {
		return err
	}

	handler := api.NewHandler(svc, scheduler, log)
	router := api.NewRouter(handler, log, cfg.CORS.Origins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(ctx)
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// seedRuleSets loads a catalog file into the database.
func seedRuleSets(ctx context.Context, svc *payroll.Service, path string, log zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rulesets: %w", err)
	}
	catalog, err := factory.NewRuleSetFactory().ParseFile(path, data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := catalog.Apply(ctx, svc); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	log.Info().Str("file", path).Int("line_types", len(catalog.LineTypes)).
		Int("rulesets", len(catalog.RuleSets)).Msg("rulesets loaded")
	return nil
}
