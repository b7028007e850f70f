/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load config (YAML, .env, environment)
  2. Open the store (SQLite or PostgreSQL)
  3. Build the event publisher (Kafka, or no-op without brokers)
  4. Create the compensation manager, payroll engine and scheduler
  5. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (default: $PAYROLL_CONFIG)
  -port    HTTP server port, overrides server.addr
  -db      SQLite database path, overrides database.sqlite_path
           Use ":memory:" for in-memory database
  -seed    Demo scenario to load on start (e.g. standard-month)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests (server.shutdown_timeout)
  4. Close publisher and database

EXAMPLES:
  # SQLite file database with a demo month loaded
  ./server -db="./data/payroll.db" -seed=standard-month

  # PostgreSQL from a config file (run cmd/migrate first)
  ./server -config=config.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Config sources
  - store/sqlite/sqlite.go, store/postgres/store.go: Stores
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

	"github.com/go-chi/httplog/v3"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/events"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/postgres"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", os.Getenv("PAYROLL_CONFIG"), "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	seed := flag.String("seed", "", "demo scenario to load on start")
	flag.Parse()

	if err := run(*configPath, *port, *dbPath, *seed); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, port int, dbPath, seed string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Server.Addr = fmt.Sprintf(":%d", port)
	}
	if dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.SQLitePath = dbPath
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(slog.String("app", "payroll-engine"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("store ready", "driver", cfg.Database.Driver)

	var publisher interface {
		compensation.Publisher
		Close() error
	} = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers), cfg.Kafka.Topic)
		logger.Info("publishing compensation events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	manager := compensation.NewManager(store,
		compensation.WithPublisher(publisher),
		compensation.WithLogger(logger))
	engine := payroll.NewEngine(store, payroll.WithBatchConcurrency(cfg.Payroll.BatchConcurrency))

	scheduler := payroll.NewScheduler(engine, store, store, logger)
	scheduler.Enabled = cfg.Payroll.SchedulerEnabled
	if cfg.Payroll.SchedulerInterval > 0 {
		scheduler.CheckInterval = cfg.Payroll.SchedulerInterval
	}

	handler := api.NewHandler(store, engine, manager, logger)
	handler.Scheduler = scheduler
	if seed != "" {
		if err := handler.Seed(ctx, seed); err != nil {
			return fmt.Errorf("seed %s: %w", seed, err)
		}
	}

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
		LogLevel:       level,
	})
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	scheduler.Start()
	defer scheduler.Stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openStore returns the configured store and a function that releases it.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (api.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	default:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return store, func() { store.Close() }, nil
	}
}
