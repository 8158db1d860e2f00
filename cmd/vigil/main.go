// Package main is the entry point for the Vigil alert engine. It initializes
// all components and starts the HTTP server and the housekeeping sweeper.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vigil-go/internal/api"
	"vigil-go/internal/config"
	"vigil-go/internal/domain"
	"vigil-go/internal/engine"
	"vigil-go/internal/hook"
	"vigil-go/internal/housekeeping"
	"vigil-go/internal/lifecycle"
	"vigil-go/internal/store"
	memorystor "vigil-go/internal/store/memory"
	postgresstor "vigil-go/internal/store/postgres"
	redisstor "vigil-go/internal/store/redis"
	"vigil-go/internal/stream"
	kafkastream "vigil-go/internal/stream/kafka"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	logger := initLogger(&cfg.Logger)

	logger.Info("configuration loaded",
		"path", *configPath,
		"storage_mode", cfg.Storage.Mode,
	)

	deps, cleanup, err := initDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start housekeeping sweeper in background
	go func() {
		if err := deps.sweeper.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sweeper error", "error", err)
			cancel()
		}
	}()

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("vigil started",
		"address", cfg.Server.Address(),
		"storage_mode", cfg.Storage.Mode,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("vigil stopped")
}

// loadConfig reads the config file, falling back to defaults when the default
// path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server  *api.Server
	sweeper *housekeeping.Sweeper
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		alertRepo    store.AlertRepository
		suppressions store.SuppressionStore
		publisher    stream.Publisher
		cleanupFuncs []func()
	)

	if cfg.Storage.UseMemory() {
		logger.Info("initializing in-memory storage")

		alertRepo = memorystor.NewAlertRepository()
		suppressions = memorystor.NewSuppressionStore()
	} else {
		logger.Info("initializing production storage (PostgreSQL, Redis, Kafka)")

		ctx := context.Background()
		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		if err := db.RunMigrations(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("database migrations completed")

		alertRepo = postgresstor.NewAlertRepository(db)

		redisStore, err := redisstor.NewSuppressionStore(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		suppressions = redisStore
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisStore.Close() })

		kafkaPublisher := kafkastream.NewPublisher(&cfg.Kafka)
		publisher = kafkaPublisher
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaPublisher.Close() })
	}

	var hooks []hook.Hook
	if len(cfg.Engine.AllowedEnvironments) > 0 {
		hooks = append(hooks, &hook.EnvironmentPolicy{
			Allowed: cfg.Engine.AllowedEnvironments,
		})
	}

	machine := lifecycle.New(domain.DefaultNormalSeverity)

	engineService := engine.NewService(
		alertRepo,
		suppressions,
		machine,
		hooks,
		publisher,
		engine.Config{
			HistoryLimit:    cfg.Engine.HistoryLimit,
			MaxWriteRetries: cfg.Engine.MaxWriteRetries,
		},
		logger,
	)

	sweeper := housekeeping.NewSweeper(
		engineService,
		cfg.Housekeeping.Interval,
		time.Duration(cfg.Housekeeping.ExpiredRetentionHours)*time.Hour,
		time.Duration(cfg.Housekeeping.InfoRetentionHours)*time.Hour,
		logger,
	)

	alertHandler := api.NewAlertHandler(engineService, cfg.Engine.AlertTimeout, logger)
	suppressionHandler := api.NewSuppressionHandler(suppressions, logger)

	server := api.NewServer(api.ServerDeps{
		Config:             &cfg.Server,
		Logger:             logger,
		AlertHandler:       alertHandler,
		SuppressionHandler: suppressionHandler,
	})

	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	return &dependencies{
		server:  server,
		sweeper: sweeper,
	}, cleanup, nil
}

// initLogger creates and configures the application logger.
func initLogger(cfg *config.LoggerConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
