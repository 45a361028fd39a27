package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/config"
	"github.com/agorahq/agora/backend/internal/container"
	"github.com/agorahq/agora/backend/internal/database"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/spf13/cobra"
)

var (
	output  string        = "text" // "text" or "json"
	timeout time.Duration = 10 * time.Second

	app *container.Container
)

var rootCmd = &cobra.Command{
	Use:   "agoractl",
	Short: "agoractl - Inspect and operate the Agora realtime core",
	Long: `agoractl talks directly to the shared Redis and the database used by the
realtime servers. It reads the same environment as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		return connect()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return app.Cleanup(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Timeout for each operation")

	rootCmd.AddCommand(onlineCmd)
	rootCmd.AddCommand(communityCmd)
	rootCmd.AddCommand(typingCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(queueCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func connect() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Server logs go to stdout; keep the CLI output clean.
	if err := logger.Initialize("error", "agoractl.log"); err != nil {
		return err
	}

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL, false)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	var bus *cache.RedisClient
	if cfg.RedisURL != "" {
		bus, err = cache.NewRedisClientFromURL(cfg.RedisURL)
	} else {
		bus, err = cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	}
	if err != nil {
		_ = database.Close(db)
		return fmt.Errorf("redis: %w", err)
	}

	app = container.New(cfg).SetDB(db).SetBus(bus)
	app.OnCleanup(func(context.Context) error { return database.Close(db) })
	app.OnCleanup(func(context.Context) error { return bus.Close() })
	return app.Wire()
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// render prints v as JSON with --output json, otherwise calls text.
func render(v any, text func()) error {
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}
