package main

import (
	"os"

	"github.com/agorahq/agora/backend/internal/config"
	"github.com/agorahq/agora/backend/internal/database"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/seed"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	var (
		users     int
		perUser   int
		seedValue uint64
	)

	root := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with fake data for local development",
	}
	root.PersistentFlags().Uint64Var(&seedValue, "seed", 0, "faker seed, 0 for random")

	dev := &cobra.Command{
		Use:   "dev",
		Short: "Create fake users and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB) error {
				return seed.NewSeeder(db, seedValue).SeedDev(users, perUser)
			})
		},
	}
	dev.Flags().IntVar(&users, "users", 50, "number of users to create")
	dev.Flags().IntVar(&perUser, "notifications", 10, "maximum notifications per user")

	clean := &cobra.Command{
		Use:   "clean",
		Short: "Remove all seed data (use with caution)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB) error {
				return seed.NewSeeder(db, seedValue).Clean()
			})
		},
	}

	root.AddCommand(dev, clean)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func withDB(fn func(db *gorm.DB) error) error {
	_ = logger.Initialize(os.Getenv("LOG_LEVEL"), "seed.log")
	defer logger.Close()

	driver, dsn, err := config.Database()
	if err != nil {
		return err
	}
	db, err := database.Open(driver, dsn, false)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	return fn(db)
}
