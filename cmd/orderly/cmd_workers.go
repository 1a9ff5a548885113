package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderly/internal/bootstrap"
)

var queueWorkersFlag int

// orderly queue:work runs a standalone consumer. Only useful with the redis
// driver; the memory queue lives inside the serve process.
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start queue workers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.QueueDriver() != "redis" {
			return errors.New("queue:work needs QUEUE_DRIVER=redis; the memory queue is drained by serve")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.New(ctx, cfg)
		if err != nil {
			return err
		}

		workers := queueWorkersFlag
		if workers < 1 {
			workers = cfg.QueueWorkers()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		runErr := app.Queue.Run(ctx, workers)
		fmt.Fprintln(cmd.OutOrStdout(), "Queue worker stopped.")

		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(runErr, app.Close(closeCtx))
	},
}

// orderly schedule:list
var scheduleListCmd = &cobra.Command{
	Use:   "schedule:list",
	Short: "List the maintenance tasks serve runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := bootstrap.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close(context.Background()) //nolint:errcheck

		for _, task := range app.Scheduler().List() {
			fmt.Fprintln(cmd.OutOrStdout(), "  •", task)
		}
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 0, "number of concurrent workers (default QUEUE_WORKERS)")
}
