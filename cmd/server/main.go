/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the meal allowance server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the YAML config
  2. Open the repository (SQLite file or PostgreSQL pool)
  3. Load the policy table (policy_file or built-in rules)
  4. Build calculator -> service (cache, instrumentation) -> handler
  5. Start the month close scheduler (when auto_lock_after_days > 0)
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (default: CONFIG_PATH, then assets/config.yaml
           when present, else built-in defaults)
  -port    HTTP server port, overrides server.listen_addr
  -db      SQLite database path, forces the sqlite driver
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler and accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with the sample config
  ./server -config=assets/config.yaml

  # Run with in-memory database
  ./server -db=":memory:"

  # Run against PostgreSQL (apply migrations first with cmd/migrate)
  CONFIG_PATH=deploy/prod.yaml ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration schema
  - cmd/migrate/main.go: PostgreSQL schema migrations
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/api"
	"github.com/kimmokhwa/meals-management-app/config"
	"github.com/kimmokhwa/meals-management-app/factory"
	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/kimmokhwa/meals-management-app/store/postgres"
	"github.com/kimmokhwa/meals-management-app/store/sqlite"
	"github.com/shopspring/decimal"
)

const defaultConfigPath = "assets/config.yaml"

func main() {
	// Flags
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or "+defaultConfigPath+")")
	port := flag.Int("port", 0, "HTTP server port (overrides server.listen_addr)")
	dbPath := flag.String("db", "", "SQLite database path (forces the sqlite driver)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.ListenAddr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.SQLitePath = *dbPath
	}

	ctx := context.Background()
	logger := log.Default()

	// Initialize store
	repo, resetter, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer closeRepo()

	// Policy and calculator
	table, err := loadPolicy(cfg.Allowance)
	if err != nil {
		log.Fatalf("Failed to load policy: %v", err)
	}
	calc := allowance.NewCalculator(table, decimal.NewFromInt(cfg.Allowance.DailyRate), logger)

	svc := allowance.NewService(repo, calc,
		allowance.WithCache(generic.NewMemoryCache()),
		allowance.WithCacheTTL(cfg.Cache.EmployeesTTL, cfg.Cache.LeavesTTL),
		allowance.WithObserver(generic.LogObserver(logger)),
		allowance.WithLogger(logger),
	)

	handler := api.NewHandler(svc, resetter)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Month close scheduler
	scheduler := api.NewMonthCloseScheduler(svc, cfg.Scheduler.AutoLockAfterDays)
	scheduler.CheckInterval = cfg.Scheduler.CheckInterval
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s (storage: %s, policy: %s, daily rate: %s)",
			cfg.Server.ListenAddr, cfg.Storage.Driver, table.ID, calc.DailyRate)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// loadConfig resolves the config path (flag, CONFIG_PATH, default file)
// and falls back to built-in defaults when no file is found.
func loadConfig(flagValue string) (*config.Config, error) {
	path := flagValue
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			log.Printf("No config file, using defaults")
			return config.Default(), nil
		}
		path = defaultConfigPath
	}
	return config.Load(path)
}

// openRepository returns the configured repository, the resetter used by
// demo scenarios (nil for PostgreSQL) and a close function.
func openRepository(ctx context.Context, cfg *config.Config) (allowance.Repository, api.Resetter, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewRepository(pool), nil, pool.Close, nil

	default:
		store, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, func() { store.Close() }, nil
	}
}

// loadPolicy reads the policy file, or returns the built-in rules.
func loadPolicy(cfg config.AllowanceConfig) (*allowance.PolicyTable, error) {
	if cfg.PolicyFile == "" {
		return allowance.DefaultPolicyTable(), nil
	}
	table, rate, err := factory.NewPolicyFactory().LoadPolicyFile(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	if rate.IntPart() != cfg.DailyRate {
		log.Printf("[Config] WARN policy %s sets daily_rate %s, using allowance.daily_rate %d",
			table.ID, rate, cfg.DailyRate)
	}
	return table, nil
}
