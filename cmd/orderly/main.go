package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderly/config"
	_ "github.com/shashiranjanraj/orderly/database/migrations"
	_ "github.com/shashiranjanraj/orderly/database/seeders"
	"github.com/shashiranjanraj/orderly/internal/bootstrap"
	"github.com/shashiranjanraj/orderly/pkg/logger"
)

var (
	configPaths []string
	cfg         *config.Config
	closeLogs   = func(context.Context) error { return nil }
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "orderly",
	Short:         "Orderly: order management API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.Load(configPaths...); err != nil {
			return err
		}

		flush, err := bootstrap.SetupLogging(cmd.Context(), cfg)
		if err != nil {
			logger.Warn("logging: mongo sink disabled", "error", err)
			return nil
		}
		closeLogs = flush
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return closeLogs(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&configPaths, "config", nil,
		"config files to read in order (default config/app.json,.env)")

	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	// Workers
	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(scheduleListCmd)

	// Accounts
	rootCmd.AddCommand(keysGenerateCmd)
	rootCmd.AddCommand(usersPromoteCmd)
}
