package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderly/internal/bootstrap"
)

// orderly users:promote <email>
var usersPromoteCmd = &cobra.Command{
	Use:   "users:promote <email>",
	Short: "Grant administrator rights to an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context()) //nolint:errcheck

		user, err := app.Accounts.Promote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %d (%s) is now an administrator.\n", user.ID, user.Email)
		return nil
	},
}
