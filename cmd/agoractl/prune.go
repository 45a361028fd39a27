package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete read notifications older than the retention window",
	Long: `Delete read notifications older than --days, or the configured retention
when --days is not given. Unread notifications are never removed.

Examples:
  agoractl prune
  agoractl prune --days 7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		retention := app.Config().Realtime.NotificationRetention
		if days > 0 {
			retention = time.Duration(days) * 24 * time.Hour
		}
		ctx, cancel := opContext()
		defer cancel()

		n, err := app.Notifications().CleanupOld(ctx, retention)
		if err != nil {
			return err
		}
		return render(map[string]any{"deleted": n}, func() {
			fmt.Printf("Deleted %d read notifications older than %s\n", n, retention)
		})
	},
}

func init() {
	pruneCmd.Flags().Int("days", 0, "Retention in days (default: NOTIFICATION_RETENTION_DAYS or 30)")
}
