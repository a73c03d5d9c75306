package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trelloplus/bot-server-go/internal/jobs"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Fetch updates with long polling instead of the webhook",
		Long:  "Deletes the registered webhook and processes updates fetched with getUpdates until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd.Context())
		},
	}
}

func runPoll(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	cleanupJob, err := a.cleanupJob()
	if err != nil {
		return err
	}
	cleanupJob.Start()
	defer cleanupJob.Stop()

	return jobs.NewPoller(a.telegram, a.dispatcher, a.reporter, cfg.PollTimeout()).Run(ctx)
}
