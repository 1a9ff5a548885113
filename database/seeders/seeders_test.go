package seeders_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderly/app/repositories"
	"github.com/shashiranjanraj/orderly/app/services"
	"github.com/shashiranjanraj/orderly/config"
	"github.com/shashiranjanraj/orderly/database/seeders"
	"github.com/shashiranjanraj/orderly/pkg/testkit"
)

type noTokens struct{}

func (noTokens) Issue(uint, time.Duration) (string, error) { return "", nil }

func deps(t *testing.T, kv map[string]string) (seeders.Deps, *repositories.Store) {
	t.Helper()
	db := testkit.NewDB(t)
	store := repositories.NewStore(db)
	accounts, err := services.NewAuthService(services.AuthServiceDeps{Store: store, Tokens: noTokens{}, BcryptCost: 4})
	require.NoError(t, err)
	return seeders.Deps{DB: db, Config: config.FromMap(kv), Accounts: accounts}, store
}

func TestSeedAdmin(t *testing.T) {
	d, store := deps(t, map[string]string{
		"ADMIN_NAME":     "Root",
		"ADMIN_EMAIL":    "Root@Example.com",
		"ADMIN_PASSWORD": "s3cret",
	})
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, seeders.RunAll(ctx, d, &out))
	assert.Contains(t, out.String(), "Running seeder: admin")

	// A second run is a no-op.
	require.NoError(t, seeders.RunAll(ctx, d, &out))

	user, err := store.Users().FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, user.Admin)
	assert.True(t, user.Active)
	assert.Equal(t, "Root", user.Name)
}

func TestSeedAdmin_Skipped(t *testing.T) {
	d, store := deps(t, map[string]string{})
	require.NoError(t, seeders.SeedAdmin(context.Background(), d))

	var count int64
	require.NoError(t, store.DB().Table("users").Count(&count).Error)
	assert.Zero(t, count)
}

func TestSeedAdmin_RequiresPassword(t *testing.T) {
	d, _ := deps(t, map[string]string{"ADMIN_EMAIL": "root@example.com"})
	assert.ErrorContains(t, seeders.SeedAdmin(context.Background(), d), "ADMIN_PASSWORD")
}

func TestNames(t *testing.T) {
	assert.Contains(t, seeders.Names(), "admin")
}
