package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderly/database/seeders"
	"github.com/shashiranjanraj/orderly/internal/bootstrap"
	"github.com/shashiranjanraj/orderly/pkg/database"
	"github.com/shashiranjanraj/orderly/pkg/migration"
)

// withRunner opens the database and hands a migration runner to fn.
func withRunner(cmd *cobra.Command, fn func(*migration.Runner) error) error {
	db, err := bootstrap.OpenDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck
	return fn(migration.New(db, cmd.OutOrStdout()))
}

// orderly migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "Running migrations…")
		return withRunner(cmd, func(r *migration.Runner) error { return r.Run(cmd.Context()) })
	},
}

// orderly migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "Rolling back last batch…")
		return withRunner(cmd, func(r *migration.Runner) error { return r.Rollback(cmd.Context()) })
	},
}

// orderly migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(cmd, func(r *migration.Runner) error { return r.Status(cmd.Context()) })
	},
}

// orderly seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := bootstrap.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context()) //nolint:errcheck

		fmt.Fprintln(cmd.OutOrStdout(), "Running seeders…")
		return seeders.RunAll(cmd.Context(), seeders.Deps{
			DB:       app.DB,
			Config:   cfg,
			Accounts: app.Accounts,
		}, cmd.OutOrStdout())
	},
}
