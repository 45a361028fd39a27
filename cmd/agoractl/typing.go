package main

import (
	"fmt"

	"github.com/agorahq/agora/backend/internal/typing"
	"github.com/spf13/cobra"
)

var typingCmd = &cobra.Command{
	Use:   "typing <post-id>",
	Short: "Show who is typing in a post thread",
	Long: `Show the live typing list of a post's top-level thread, or of a reply
thread with --parent.

Examples:
  agoractl typing 6e0f6f1c-5a7e-4b0c-9b1a-0d6c2f1a9a01
  agoractl typing 6e0f6f1c-5a7e-4b0c-9b1a-0d6c2f1a9a01 --parent a1d3b0f2-77b4-4c6e-8f5e-3c2b9d8e7f10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")
		ctx, cancel := opContext()
		defer cancel()

		update, err := app.Typing().Snapshot(ctx, typing.Thread{PostID: args[0], ParentCommentID: parent})
		if err != nil {
			return err
		}

		return render(update, func() {
			fmt.Printf("%d typing\n", update.Count)
			for _, u := range update.TypingUsers {
				name := u.Username
				if name == "" {
					name = "(unknown)"
				}
				fmt.Printf("  %-20s %s since %s\n", name, u.UserID, u.StartedTypingAt.Format("15:04:05"))
			}
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired typing indicators now and broadcast the affected threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		n, err := app.Typing().CleanupExpired(ctx)
		if err != nil {
			return err
		}
		return render(map[string]any{"deleted": n}, func() {
			fmt.Printf("Deleted %d expired typing indicators\n", n)
		})
	},
}

func init() {
	typingCmd.Flags().String("parent", "", "Parent comment id of the reply thread")
}
