package services_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderly/app/repositories"
	"github.com/shashiranjanraj/orderly/app/services"
	"github.com/shashiranjanraj/orderly/pkg/auth"
	"github.com/shashiranjanraj/orderly/pkg/testkit"
)

type stubIssuer struct{}

func (stubIssuer) Issue(userID uint, ttl time.Duration) (string, error) {
	return fmt.Sprintf("tok-%d-%s", userID, ttl), nil
}

func newAuthService(t *testing.T) (*services.AuthService, *repositories.Store) {
	t.Helper()
	store := repositories.NewStore(testkit.NewDB(t))
	svc, err := services.NewAuthService(services.AuthServiceDeps{
		Store:      store,
		Tokens:     stubIssuer{},
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		BcryptCost: 4,
	})
	require.NoError(t, err)
	return svc, store
}

func TestSignupAndSignin(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	pair, err := svc.Signup(ctx, "Ana", "Ana@Example.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Contains(t, pair.AccessToken, "-1m0s")
	assert.Contains(t, pair.RefreshToken, "-1h0m0s")

	user, err := store.Users().FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.False(t, user.Admin)
	assert.True(t, auth.CheckPassword(user.Password, "s3cret"))

	_, err = svc.Signup(ctx, "Other", "ana@example.com", "x")
	assert.ErrorIs(t, err, services.ErrConflict)

	pair, err = svc.Signin(ctx, "ana@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("tok-%d-1m0s", user.ID), pair.AccessToken)
}

func TestSigninFailuresAreIndistinguishable(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Ana", "ana@example.com", "s3cret")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "Bia", "bia@example.com", "s3cret")
	require.NoError(t, err)

	bia, err := store.Users().FindByEmail(ctx, "bia@example.com")
	require.NoError(t, err)
	bia.Active = false
	require.NoError(t, store.Users().Update(ctx, bia))

	_, unknown := svc.Signin(ctx, "nobody@example.com", "s3cret")
	_, wrong := svc.Signin(ctx, "ana@example.com", "nope")
	_, inactive := svc.Signin(ctx, "bia@example.com", "s3cret")

	for _, err := range []error{unknown, wrong, inactive} {
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
		assert.Equal(t, unknown.Error(), err.Error())
	}
}

func TestRefresh(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Ana", "ana@example.com", "s3cret")
	require.NoError(t, err)
	ana, err := store.Users().FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("tok-%d-1m0s", ana.ID), pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)

	_, err = svc.Refresh(ctx, 9999)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestEnsureAdminAndPromote(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "Store", "store@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, admin.Admin)

	again, err := svc.EnsureAdmin(ctx, "Store", "store@example.com", "other")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	stored, err := store.Users().Find(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(stored.Password, "pw"), "existing password is kept")

	_, err = svc.Signup(ctx, "Ana", "ana@example.com", "s3cret")
	require.NoError(t, err)
	promoted, err := svc.Promote(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, promoted.Admin)

	_, err = svc.Promote(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestPasswordLengthCountsBytes(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	// 40 runes, 80 bytes.
	tooLong := strings.Repeat("é", 40)

	_, err := svc.Signup(ctx, "Ana", "ana@example.com", tooLong)
	assert.ErrorIs(t, err, services.ErrBadRequest)
	_, err = store.Users().FindByEmail(ctx, "ana@example.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = svc.EnsureAdmin(ctx, "Store", "store@example.com", tooLong)
	assert.ErrorIs(t, err, services.ErrBadRequest)

	_, err = svc.Signup(ctx, "Ana", "ana@example.com", strings.Repeat("é", 36))
	require.NoError(t, err)
}
