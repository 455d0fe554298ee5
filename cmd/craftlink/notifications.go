package main

import (
	"fmt"

	"github.com/spf13/cobra"

	craftlink "github.com/craftlink/craftlink-go/client"
)

var markReadID int64

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notifs"},
	Short:   "List notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := loadCLIConfig()
		if err != nil {
			return err
		}
		creds, err := credentials(cli)
		if err != nil {
			return err
		}
		api := craftlink.NewClient(clientConfig(cli), creds, nil, logger)
		ctx := cmd.Context()

		if markReadID != 0 {
			if err := api.MarkNotificationRead(ctx, markReadID); err != nil {
				return err
			}
			fmt.Printf("Marked notification %d read\n", markReadID)
			return nil
		}

		items, err := api.Notifications(ctx)
		if err != nil {
			return err
		}
		feed := craftlink.NewNotificationFeed()
		feed.LoadSnapshot(items)

		view := feed.View()
		if len(view) == 0 {
			fmt.Println("No notifications.")
			return nil
		}
		for _, n := range view {
			marker := "*"
			if n.IsRead {
				marker = " "
			}
			fmt.Printf("%s %5d  %s  %s\n", marker, n.ID,
				n.CreatedAt.Local().Format("Jan 02 15:04"), n.Title)
		}
		fmt.Printf("\n%d unread\n", feed.UnreadCount())
		return nil
	},
}

func init() {
	notificationsCmd.Flags().Int64Var(&markReadID, "mark-read", 0, "mark one notification read instead of listing")
}
