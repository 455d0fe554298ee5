package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	craftlink "github.com/craftlink/craftlink-go/client"
	"github.com/craftlink/craftlink-go/client/realtime"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream notifications live until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := loadCLIConfig()
		if err != nil {
			return err
		}
		creds, err := credentials(cli)
		if err != nil {
			return err
		}
		cfg := clientConfig(cli)
		if cfg.RealtimeDisabled {
			return errors.New("realtime is disabled by CRAFTLINK_REALTIME_DISABLED")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Seed the feed from the REST snapshot so the unread count is
		// right from the first event.
		api := craftlink.NewClient(cfg, creds, nil, logger)
		feed := craftlink.NewNotificationFeed()
		if snapshot, err := api.Notifications(ctx); err == nil {
			feed.LoadSnapshot(snapshot)
		} else {
			logger.Warn("snapshot fetch failed, starting empty", "error", err)
		}

		dispatcher := realtime.NewDispatcher(logger)
		realtime.AttachFeed(dispatcher, feed)
		dispatcher.OnNotification(func(n craftlink.Notification) {
			fmt.Printf("[%s] %s: %s  (%d unread)\n",
				n.CreatedAt.Local().Format("15:04:05"), n.Title, n.Message, feed.UnreadCount())
		})

		conn := realtime.NewConn(
			realtime.GlobalStream(cfg.WebSocketBase()),
			creds, dispatcher,
			realtime.Options{Logger: logger})
		conn.OnStateChange(func(s realtime.State, err error) {
			if err != nil {
				logger.Warn("connection state", "state", s, "error", err)
			} else {
				logger.Info("connection state", "state", s)
			}
			// A terminal state ends the watch; otherwise Ctrl-C does.
			if s == realtime.StateFailed || s == realtime.StateClosed {
				stop()
			}
		})

		if err := conn.Open(ctx); err != nil {
			return err
		}
		defer conn.Close()

		fmt.Printf("Watching, %d unread. Ctrl-C to stop.\n", feed.UnreadCount())
		<-ctx.Done()

		if err := conn.Err(); err != nil {
			return err
		}
		return nil
	},
}
