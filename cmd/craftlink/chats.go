package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	craftlink "github.com/craftlink/craftlink-go/client"
)

var chatsCmd = &cobra.Command{
	Use:   "chats [room-id]",
	Short: "List chat rooms, or show one room's transcript",
	Args:  cobra.MaximumNArgs(1),
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

		if len(args) == 1 {
			roomID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid room id %q", args[0])
			}
			history, err := api.ChatMessages(ctx, roomID)
			if err != nil {
				return err
			}
			transcript := craftlink.NewTranscript(roomID)
			transcript.Load(history)
			for _, m := range transcript.Messages() {
				printMessage(m)
			}
			return nil
		}

		rooms, err := api.ChatRooms(ctx)
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			fmt.Println("No chats.")
			return nil
		}
		for _, r := range rooms {
			line := fmt.Sprintf("%5d  %s", r.ID, r.Title)
			if r.UnreadCount > 0 {
				line += fmt.Sprintf("  (%d unread)", r.UnreadCount)
			}
			if r.LastMessage != nil {
				line += "  " + truncate(r.LastMessage.Content, 40)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func printMessage(m craftlink.ChatMessage) {
	when := m.CreatedAt.Local().Format("Jan 02 15:04")
	if m.System {
		fmt.Printf("        %s  -- %s --\n", when, m.Content)
		return
	}
	fmt.Printf("%s  [%d] %s\n", when, m.SenderID, m.Content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
