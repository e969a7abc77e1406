/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the kindergarten operations server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Configure structured logging
  3. Initialize SQLite store
  4. Wire domain services (catalog, attendance, billing, leave)
  5. Start the billing scheduler and HTTP server
  6. Shut down gracefully on SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: kinder.db)
           Use ":memory:" for in-memory database
  -meals   Path to the auto-meal settings yaml (default: meals.yaml);
           a missing file means all meal types enabled
  -log     Log level: debug, info, warn, error (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the billing scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/kinder.db"

  # Run with in-memory database and debug logging
  ./server -db=":memory:" -log=debug

ENVIRONMENT:
  Variables from a local .env file are loaded before flag parsing, so
  flag defaults can be overridden per deployment without wrapper scripts.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/brightsprout/kinder-engine/api"
	"github.com/brightsprout/kinder-engine/attendance"
	"github.com/brightsprout/kinder-engine/billing"
	"github.com/brightsprout/kinder-engine/catalog"
	"github.com/brightsprout/kinder-engine/leave"
	"github.com/brightsprout/kinder-engine/store/sqlite"
)

func main() {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "kinder.db"), "SQLite database path")
	mealsPath := flag.String("meals", envStr("MEALS_CONFIG", "meals.yaml"), "auto-meal settings yaml path")
	logLevel := flag.String("log", envStr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	log := logrus.New()
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Domain services
	cat := catalog.NewMenuCatalog(store, catalog.NewFileSettings(*mealsPath), log)
	costs := catalog.NewDishCostEngine(store)
	ledger := attendance.NewTicketLedger(cat, store)
	lifecycle := attendance.NewLifecycle(store, store, ledger, log)
	generator := billing.NewGenerator(store, store, store, log)
	workflow := leave.NewWorkflow(store, store)

	// HTTP
	handler := api.NewHandler(store, cat, costs, lifecycle, generator, workflow, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Monthly billing runs unattended.
	scheduler := api.NewBillingScheduler(generator, log)
	scheduler.Start()

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
