package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	craftlink "github.com/craftlink/craftlink-go/client"
	"github.com/craftlink/craftlink-go/client/realtime"
)

var sendCmd = &cobra.Command{
	Use:   "send <room-id> <message...>",
	Short: "Send a chat message to a room",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid room id %q", args[0])
		}
		content := strings.Join(args[1:], " ")

		cli, err := loadCLIConfig()
		if err != nil {
			return err
		}
		creds, err := credentials(cli)
		if err != nil {
			return err
		}
		cfg := clientConfig(cli)

		dispatcher := realtime.NewDispatcher(logger)
		echo := make(chan craftlink.ChatMessage, 1)
		dispatcher.OnNewMessage(func(m craftlink.ChatMessage) {
			select {
			case echo <- m:
			default:
			}
		})
		conn := realtime.NewConn(
			realtime.RoomStream(cfg.WebSocketBase(), roomID),
			creds, dispatcher,
			realtime.Options{Logger: logger})
		defer conn.Close()

		ready := make(chan struct{})
		failed := make(chan error, 1)
		conn.OnStateChange(func(s realtime.State, err error) {
			switch s {
			case realtime.StateReady:
				select {
				case ready <- struct{}{}:
				default:
				}
			case realtime.StateFailed:
				failed <- err
			}
		})

		if err := conn.Open(cmd.Context()); err != nil {
			return err
		}

		select {
		case <-ready:
		case err := <-failed:
			return err
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}

		if err := conn.Send(realtime.SendMessage(content)); err != nil {
			return err
		}

		// The backend echoes the stored message back on the room stream;
		// waiting for it confirms delivery. Fall back to a plain "sent"
		// after a short grace period.
		select {
		case m := <-echo:
			fmt.Printf("Delivered to room %d as message %d\n", roomID, m.ID)
		case <-time.After(3 * time.Second):
			fmt.Printf("Sent to room %d\n", roomID)
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
		return nil
	},
}
