package seeders

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/orderly/pkg/logger"
)

func init() {
	Register("admin", SeedAdmin)
}

// SeedAdmin creates the ADMIN_EMAIL account, or promotes it if it exists.
// It is a no-op when ADMIN_EMAIL is unset.
func SeedAdmin(ctx context.Context, d Deps) error {
	email := d.Config.Get("ADMIN_EMAIL", "")
	if email == "" {
		logger.Info("seed: ADMIN_EMAIL not set, skipping admin account")
		return nil
	}
	password := d.Config.Get("ADMIN_PASSWORD", "")
	if password == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}
	if d.Accounts == nil {
		return errors.New("account service is not configured")
	}

	user, err := d.Accounts.EnsureAdmin(ctx, d.Config.Get("ADMIN_NAME", "Administrator"), email, password)
	if err != nil {
		return err
	}
	logger.Info("seed: admin account ready", "user_id", user.ID, "email", user.Email)
	return nil
}
