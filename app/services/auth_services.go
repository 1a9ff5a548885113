package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/orderly/app/models"
	"github.com/shashiranjanraj/orderly/app/repositories"
	"github.com/shashiranjanraj/orderly/pkg/auth"
)

const TokenTypeBearer = "Bearer"

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	Issue(userID uint, ttl time.Duration) (string, error)
}

// TokenPair is what signup, signin and refresh hand back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// AuthServiceDeps bundles collaborators required to construct the auth service.
type AuthServiceDeps struct {
	Store      *repositories.Store
	Tokens     TokenIssuer
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	Clock      func() time.Time
}

// AuthService manages accounts and issues tokens.
type AuthService struct {
	store      *repositories.Store
	tokens     TokenIssuer
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	now        func() time.Time

	dummyOnce sync.Once
	dummy     []byte
}

func NewAuthService(deps AuthServiceDeps) (*AuthService, error) {
	if deps.Store == nil {
		return nil, errors.New("auth service: store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("auth service: token issuer is required")
	}
	if deps.AccessTTL <= 0 {
		deps.AccessTTL = 30 * time.Minute
	}
	if deps.RefreshTTL <= 0 {
		deps.RefreshTTL = 7 * 24 * time.Hour
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &AuthService{
		store:      deps.Store,
		tokens:     deps.Tokens,
		accessTTL:  deps.AccessTTL,
		refreshTTL: deps.RefreshTTL,
		cost:       deps.BcryptCost,
		now:        deps.Clock,
	}, nil
}

// Signup creates an active, non-admin account and signs the user in.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*TokenPair, error) {
	name = strings.TrimSpace(name)
	email = repositories.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrBadRequest)
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("signup: hash password: %w", err)
	}

	user := &models.User{
		Name:      name,
		Email:     email,
		Password:  hash,
		Active:    true,
		CreatedAt: s.now(),
	}
	err = s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		return tx.Users().Create(ctx, user)
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
	}
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}

	return s.pair(user.ID)
}

// Signin checks credentials. Unknown email, wrong password and inactive
// account all produce the same ErrInvalidCredentials, and each path runs
// one bcrypt comparison.
func (s *AuthService) Signin(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("signin: %w", err)
	}

	if user == nil {
		auth.CheckPassword(s.dummyHash(), password)
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(user.Password, password) || !user.Active {
		return nil, ErrInvalidCredentials
	}

	return s.pair(user.ID)
}

// Refresh issues a new access token for an existing, active caller.
func (s *AuthService) Refresh(ctx context.Context, callerID uint) (*TokenPair, error) {
	if _, err := loadCaller(ctx, s.store, callerID); err != nil {
		return nil, err
	}

	access, err := s.tokens.Issue(callerID, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh: issue token: %w", err)
	}
	return &TokenPair{AccessToken: access, TokenType: TokenTypeBearer}, nil
}

// EnsureAdmin creates the administrator account, or promotes and
// reactivates it when the email already exists. The password is only set on
// creation.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	email = repositories.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: admin email and password are required", ErrBadRequest)
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		existing, err := tx.Users().FindByEmail(ctx, email)
		switch {
		case err == nil:
			existing.Admin, existing.Active = true, true
			user = existing
			return tx.Users().Update(ctx, existing)
		case !errors.Is(err, repositories.ErrNotFound):
			return err
		}

		hash, err := auth.HashPassword(password, s.cost)
		if err != nil {
			return err
		}
		user = &models.User{Name: name, Email: email, Password: hash, Active: true, Admin: true, CreatedAt: s.now()}
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}
	return user, nil
}

// Promote grants admin to the account registered under email.
func (s *AuthService) Promote(ctx context.Context, email string) (*models.User, error) {
	var user *models.User
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		var err error
		if user, err = tx.Users().FindByEmail(ctx, email); err != nil {
			return notFound(err, "user %s", email)
		}
		user.Admin = true
		return tx.Users().Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func checkPasswordLength(password string) error {
	if len(password) > auth.MaxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrBadRequest, auth.MaxPasswordBytes)
	}
	return nil
}

func (s *AuthService) pair(userID uint) (*TokenPair, error) {
	access, err := s.tokens.Issue(userID, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.Issue(userID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: TokenTypeBearer}, nil
}

func (s *AuthService) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = auth.HashPassword("orderly-dummy-password", s.cost)
	})
	return s.dummy
}
