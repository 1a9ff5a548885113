package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderly/internal/bootstrap"
	"github.com/shashiranjanraj/orderly/internal/server"
	"github.com/shashiranjanraj/orderly/pkg/logger"
	"github.com/shashiranjanraj/orderly/pkg/migration"
)

var (
	serveWorkers int
	serveMigrate bool
)

// orderly serve runs the HTTP API plus in-process queue workers and scheduler.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server, queue workers and scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.New(ctx, cfg)
		if err != nil {
			return err
		}
		if serveMigrate {
			if err := migration.New(app.DB, cmd.OutOrStdout()).Run(ctx); err != nil {
				_ = app.Close(context.Background())
				return err
			}
		}
		r, err := app.Router()
		if err != nil {
			_ = app.Close(context.Background())
			return err
		}

		workers := serveWorkers
		if workers < 1 {
			workers = cfg.QueueWorkers()
		}

		// Background work outlives the HTTP server so queued notifications
		// still get delivered during shutdown.
		bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := app.Queue.Run(bgCtx, workers); err != nil {
				logger.Error("queue: workers exited", "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			app.Scheduler().Start(bgCtx)
		}()

		logger.Info("orderly: starting", append([]any{"port", cfg.AppPort(), "workers", workers}, app.Describe()...)...)
		serveErr := server.Start(ctx, ":"+cfg.AppPort(), r.Handler(), server.Options{})
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		poolErr := app.Pool.Shutdown(shutdownCtx)
		stopBackground()
		wg.Wait()

		return errors.Join(serveErr, poolErr, app.Close(shutdownCtx))
	},
}

// orderly route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := bootstrap.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close(context.Background()) //nolint:errcheck

		infos := app.RouteTable()
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No named routes registered.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&serveWorkers, "workers", "w", 0, "queue workers to run in-process (default QUEUE_WORKERS)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "run pending migrations before serving")
}
