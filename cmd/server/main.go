package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/api"
	"github.com/lab-analysis-engine/internal/cache"
	"github.com/lab-analysis-engine/internal/config"
	"github.com/lab-analysis-engine/internal/database"
	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/internal/feedback"
	"github.com/lab-analysis-engine/internal/repository"
	"github.com/lab-analysis-engine/internal/service"
)

var version = "dev"

var errRedisUnhealthy = errors.New("redis ping failed")

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := api.Dependencies{Version: version}

	var audits domain.AuditRepository
	if configManager.DatabaseEnabled() {
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}

		audits = repository.NewAuditRepository(db.Pool, logger)

		store, err := feedback.NewPostgresStoreFromURL(configManager.GetDatabaseURL(), cfg.Database)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open feedback store")
		}
		defer store.Close()

		deps.Feedback = service.NewFeedbackService(logger, store)
		deps.HealthChecks = append(deps.HealthChecks, api.HealthCheck{
			Name:     "database",
			Critical: true,
			Check:    db.Health,
		})
	} else {
		logger.Warn("No database configured, audits and feedback are disabled")
	}

	memory := cache.NewMemoryCache(cfg.Cache.MemoryMaxItems, cfg.Cache.DefaultTTL)
	var viewCache domain.ViewCache = memory
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-memory view cache only")
		} else {
			defer redisCache.Close()
			viewCache = cache.NewTieredCache(memory, redisCache, logger)
			deps.HealthChecks = append(deps.HealthChecks, api.HealthCheck{
				Name: "redis",
				Check: func(ctx context.Context) error {
					if !redisCache.IsHealthy(ctx) {
						return errRedisUnhealthy
					}
					return nil
				},
			})
		}
	}

	deps.Analysis = service.NewAnalysisService(logger, viewCache, audits)

	logger.WithFields(logrus.Fields{
		"host":     cfg.Server.Host,
		"port":     cfg.Server.Port,
		"version":  version,
		"database": configManager.DatabaseEnabled(),
		"redis":    cfg.Cache.RedisURL != "",
	}).Info("Starting lab analysis engine")

	server := api.NewServer(configManager, deps, logger)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
