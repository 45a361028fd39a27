package main

import (
	"fmt"
	"os"

	"github.com/agorahq/agora/backend/internal/config"
	"github.com/agorahq/agora/backend/internal/database"
	"github.com/agorahq/agora/backend/internal/logger"
	"go.uber.org/zap"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	default:
		fmt.Println("Usage: migrate [up]")
		fmt.Println("  up - Create or update the users, typing indicator and notification tables")
		os.Exit(1)
	}
}

func runMigrationsUp() {
	_ = logger.Initialize(os.Getenv("LOG_LEVEL"), "migrate.log")
	defer logger.Close()

	driver, dsn, err := config.Database()
	if err != nil {
		logger.FatalWithFields("Invalid database configuration", err)
	}

	logger.L().Info("Connecting to database...", zap.String("driver", driver))
	db, err := database.Open(driver, dsn, false)
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close(db)

	logger.L().Info("Running migrations...")
	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}
	logger.L().Info("All migrations completed successfully")
}
