package main

import (
	"encoding/json"
	"fmt"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect offline notification queues",
}

var queuePeekCmd = &cobra.Command{
	Use:   "peek <user-id>",
	Short: "Show a user's queued notifications without removing them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		items, err := app.Bus().LRange(ctx, cache.NotificationQueueKey(args[0]))
		if err != nil {
			return err
		}
		raw := make([]json.RawMessage, len(items))
		for i, item := range items {
			raw[i] = json.RawMessage(item)
		}
		return printQueue(args[0], raw)
	},
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain <user-id>",
	Short: "Remove and print a user's queued notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		items, err := app.Engine().DrainQueue(ctx, args[0])
		if err != nil {
			return err
		}
		return printQueue(args[0], items)
	},
}

func printQueue(userID string, items []json.RawMessage) error {
	return render(items, func() {
		fmt.Printf("%d queued for %s\n", len(items), userID)
		for i, item := range items {
			fmt.Printf("  %d. %s\n", i+1, item)
		}
	})
}

func init() {
	queueCmd.AddCommand(queuePeekCmd)
	queueCmd.AddCommand(queueDrainCmd)
}
