package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/telegram"
)

func newSetWebhookCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "set-webhook",
		Short: "Register the webhook URL with Telegram",
		Long:  "Registers SITE_URL/bot/<token hash>/ for message and callback_query updates. Use --delete to switch back to polling.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramBotToken)
			if err != nil {
				return err
			}
			return runSetWebhook(cmd.Context(), cmd.OutOrStdout(), cfg, client, remove)
		},
	}

	cmd.Flags().BoolVar(&remove, "delete", false, "delete the webhook instead of setting it")
	return cmd
}

type webhookClient interface {
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context) error
}

func runSetWebhook(ctx context.Context, out io.Writer, cfg *config.Config, client webhookClient, remove bool) error {
	if remove {
		if err := client.DeleteWebhook(ctx); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		fmt.Fprintln(out, "Webhook deleted")
		return nil
	}

	if err := client.SetWebhook(ctx, cfg.WebhookURL()); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Info().Msg("webhook registered")
	// The URL carries the token hash, so it is printed but not logged.
	fmt.Fprintf(out, "Webhook set to %s\n", cfg.WebhookURL())
	return nil
}
