package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/config"
	"github.com/sean-rowe/best-bike-day/internal/infrastructure/database"
	"github.com/sean-rowe/best-bike-day/internal/observability"
)

func main() {
	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var (
		action  = flag.String("action", "up", "Migration action: up, down, goto, force, status")
		target  = flag.Int("version", -1, "Target version for goto or force")
		dbHost  = flag.String("host", cfg.Database.Host, "Database host")
		dbPort  = flag.Int("port", cfg.Database.Port, "Database port")
		dbUser  = flag.String("user", cfg.Database.User, "Database user")
		dbPass  = flag.String("password", cfg.Database.Password, "Database password")
		dbName  = flag.String("database", cfg.Database.Name, "Database name")
		dbSSL   = flag.String("sslmode", cfg.Database.SSLMode, "SSL mode")
		timeout = flag.Duration("timeout", 10*time.Second, "Connection timeout")
	)

	flag.Parse()

	logger, err := observability.NewLogger(cfg.Server.Environment, cfg.Server.LogLevel)

	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pg, err := database.NewPostgresDB(ctx, database.Config{
		Host:     *dbHost,
		Port:     *dbPort,
		User:     *dbUser,
		Password: *dbPass,
		Database: *dbName,
		SSLMode:  *dbSSL,
	}, logger)

	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	defer func() {
		if err := pg.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	db := pg.DB()

	switch *action {
	case "up":
		if err := database.RunMigrations(db, logger); err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}

		logger.Info("Migrations completed successfully")

	case "down":
		if err := database.MigrateDown(db, logger); err != nil {
			logger.Fatal("Rollback failed", zap.Error(err))
		}

		logger.Info("Rollback completed successfully")

	case "goto":
		if *target <= 0 {
			logger.Fatal("A positive version must be specified with -version")
		}

		if err := database.MigrateToVersion(db, uint(*target), logger); err != nil {
			logger.Fatal("Migration to version failed", zap.Int("version", *target), zap.Error(err))
		}

		logger.Info("Migration to version completed", zap.Int("version", *target))

	case "force":
		if *target < 0 {
			logger.Fatal("Version must be specified with -version")
		}

		if err := database.ForceVersion(db, *target, logger); err != nil {
			logger.Fatal("Force version failed", zap.Int("version", *target), zap.Error(err))
		}

		logger.Info("Forced version set", zap.Int("version", *target))

	case "status":
		current, dirty, err := database.Version(db)

		if err != nil {
			logger.Fatal("Failed to read migration version", zap.Error(err))
		}

		logger.Info("Migration status", zap.Uint("version", current), zap.Bool("dirty", dirty))

	default:
		logger.Fatal("Invalid action", zap.String("action", *action))
	}
}
