package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderly/pkg/auth"
)

var (
	keysOnce         sync.Once
	privPEM, pubPEM  []byte
	otherPriv, other []byte
)

func keys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		privPEM, pubPEM, err = auth.GenerateKeyPair(2048)
		require.NoError(t, err)
		otherPriv, other, err = auth.GenerateKeyPair(2048)
		require.NoError(t, err)
	})
	return privPEM, pubPEM
}

func TestIssueAndValidate(t *testing.T) {
	priv, pub := keys(t)
	a, err := auth.NewAuthenticator(priv, pub, "orderly")
	require.NoError(t, err)

	token, err := a.Issue(7, time.Minute)
	require.NoError(t, err)

	id, err := a.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	require.NoError(t, err)
	assert.Equal(t, "RS256", parsed.Method.Alg())
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "orderly", claims.Issuer)
	assert.NotNil(t, claims.IssuedAt)
}

func TestValidate_Rejects(t *testing.T) {
	priv, pub := keys(t)
	a, err := auth.NewAuthenticator(priv, pub, "orderly")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		past := a.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
		token, err := past.Issue(1, time.Minute)
		require.NoError(t, err)

		_, err = a.Validate(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		foreign, err := auth.NewAuthenticator(priv, pub, "someone-else")
		require.NoError(t, err)
		token, err := foreign.Issue(1, time.Minute)
		require.NoError(t, err)

		_, err = a.Validate(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		forger, err := auth.NewAuthenticator(otherPriv, other, "orderly")
		require.NoError(t, err)
		token, err := forger.Issue(1, time.Minute)
		require.NoError(t, err)

		_, err = a.Validate(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("hs256 downgrade", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "orderly",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}).SignedString(pub)
		require.NoError(t, err)

		_, err = a.Validate(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.Validate("not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestVerifyOnlyCannotIssue(t *testing.T) {
	_, pub := keys(t)
	a, err := auth.NewAuthenticator(nil, pub, "orderly")
	require.NoError(t, err)

	_, err = a.Issue(1, time.Minute)
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := auth.HashPassword("correct horse", 4)
	require.NoError(t, err)

	assert.True(t, auth.CheckPassword(hash, "correct horse"))
	assert.False(t, auth.CheckPassword(hash, "battery staple"))
	assert.False(t, auth.CheckPassword([]byte("not-a-hash"), "correct horse"))
}
