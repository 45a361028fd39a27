package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var onlineCmd = &cobra.Command{
	Use:   "online <user-id>",
	Short: "Show whether a user is online and their open connections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		userID := args[0]
		online, err := app.Presence().IsOnline(ctx, userID)
		if err != nil {
			return err
		}
		conns, err := app.Presence().Connections(ctx, userID)
		if err != nil {
			return err
		}

		return render(map[string]any{"user_id": userID, "is_online": online, "connections": conns}, func() {
			state := "offline"
			if online {
				state = "online"
			}
			fmt.Printf("%s is %s (%d connections)\n", userID, state, len(conns))
			for _, c := range conns {
				fmt.Printf("  %s\n", c)
			}
		})
	},
}

var communityCmd = &cobra.Command{
	Use:   "community <community-id>",
	Short: "List the members currently present in a community",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		users, err := app.Presence().CommunityOnlineUsers(ctx, args[0])
		if err != nil {
			return err
		}

		return render(map[string]any{"community_id": args[0], "online_count": len(users), "user_ids": users}, func() {
			fmt.Printf("%d online in %s\n", len(users), args[0])
			for _, u := range users {
				fmt.Printf("  %s\n", u)
			}
		})
	},
}
