// Package auth issues and validates RS256 identity tokens and hashes
// passwords.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken wraps every validation failure.
var ErrInvalidToken = errors.New("auth: invalid token")

// Authenticator signs tokens with an RSA private key and verifies them with
// the matching public key. Tokens carry sub (user id), iss, iat and exp.
type Authenticator struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
	issuer  string
	now     func() time.Time
}

// NewAuthenticator parses PEM-encoded keys. privatePEM may be nil for a
// verify-only instance.
func NewAuthenticator(privatePEM, publicPEM []byte, issuer string) (*Authenticator, error) {
	if issuer == "" {
		return nil, errors.New("auth: issuer is required")
	}

	a := &Authenticator{issuer: issuer, now: time.Now}

	if len(privatePEM) > 0 {
		key, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
		if err != nil {
			return nil, fmt.Errorf("auth: parse private key: %w", err)
		}
		a.private = key
	}

	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	a.public = pub

	return a, nil
}

// WithClock returns a copy that reads time from now. Tests only.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	clone := *a
	clone.now = now
	return &clone
}

// Issue signs a token for userID that expires after ttl.
func (a *Authenticator) Issue(userID uint, ttl time.Duration) (string, error) {
	if a.private == nil {
		return "", errors.New("auth: no private key configured")
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.private)
	if err != nil {
		return "", fmt.Errorf("auth: sign: %w", err)
	}
	return token, nil
}

// Validate verifies signature, algorithm, issuer and expiry and returns the
// subject as a user id.
func (a *Authenticator) Validate(raw string) (uint, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (interface{}, error) { return a.public, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	return uint(id), nil
}
