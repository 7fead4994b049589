/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mymiscarriage/apiserver/config"
	"github.com/mymiscarriage/apiserver/internal/events"
	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/internal/mq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes testimony events and notifies moderators",
	Long: `Subscribes to testimony.submitted and testimony.moderated and logs
one line per event so new submissions show up in the moderation log.
Requires MQ_BACKEND to be set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logging.New(cfg.Log).With("component", "worker")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		if queue == nil {
			return errors.New("worker needs a message queue; set MQ_BACKEND")
		}
		defer queue.Close()

		return runWorker(ctx, queue, log)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(ctx context.Context, queue *mq.MQ, log logging.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return events.Subscribe(ctx, queue, events.ChannelSubmitted, log, func(ctx context.Context, event events.TestimonyEvent) error {
			log.Info(ctx, "testimony awaiting moderation", "testimony_id", event.TestimonyID, "submitted_at", event.OccurredAt)
			return nil
		})
	})
	g.Go(func() error {
		return events.Subscribe(ctx, queue, events.ChannelModerated, log, func(ctx context.Context, event events.TestimonyEvent) error {
			log.Info(ctx, "testimony moderated", "testimony_id", event.TestimonyID, "status", event.Status, "previous_status", event.PreviousStatus)
			return nil
		})
	})

	log.Info(ctx, "worker started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
