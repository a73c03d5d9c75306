package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trelloplus/bot-server-go/internal/service"
)

func newBroadcastCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Send a message to every active user",
		Long:  "Sends --text (Telegram HTML) to every active user. Users who blocked the bot are deactivated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--text is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := service.NewBroadcaster(a.store, a.env).Send(cmd.Context(), text)
			fmt.Fprintf(cmd.OutOrStdout(), "Sent: %d, failed: %d\n", res.Sent, res.Failed)
			return err
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "message text")
	return cmd
}
