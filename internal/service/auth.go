package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/repository"
	"github.com/iliyamo/onstream-api/internal/utils"
	"github.com/iliyamo/onstream-api/internal/validation"
)

// UserStore is the `users` collection.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	TouchLogin(ctx context.Context, username string, at time.Time) error
}

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthService registers users, issues access tokens and verifies them.
// Verification is stateless: the identity comes from the token alone.
type AuthService struct {
	users      UserStore
	secret     string
	ttlMin     int
	bcryptCost int
	now        func() time.Time
}

func NewAuthService(users UserStore, secret string, ttlMin, bcryptCost int) *AuthService {
	if ttlMin <= 0 {
		ttlMin = 1440
	}
	return &AuthService{
		users: users, secret: secret, ttlMin: ttlMin, bcryptCost: bcryptCost,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a non-admin account. A taken username or email is
// ErrConflict, whether caught by the pre-check or by the unique index.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return model.User{}, invalid(err)
	}
	return s.create(ctx, in, false)
}

func (s *AuthService) create(ctx context.Context, in RegisterInput, admin bool) (model.User, error) {
	taken, err := s.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return model.User{}, fmt.Errorf("check user: %w", err)
	}
	if taken {
		return model.User{}, ErrConflict
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      admin,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, ErrConflict
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login verifies the password, records the login time and issues a token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (TokenResponse, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validation.Struct(in); err != nil {
		return TokenResponse{}, invalid(err)
	}
	u, err := s.users.GetByUsername(ctx, in.Username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return TokenResponse{}, ErrInvalidCredentials
	case err != nil:
		return TokenResponse{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return TokenResponse{}, ErrInvalidCredentials
	}
	if err := s.users.TouchLogin(ctx, u.Username, s.now()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("username", u.Username).Msg("updating last_login failed")
	}
	tok, err := utils.NewAccessToken(s.secret, u.Username, u.IsAdmin, s.ttlMin)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return TokenResponse{AccessToken: tok.Token, TokenType: "bearer", ExpiresIn: s.ttlMin * 60}, nil
}

// Authenticate verifies a bearer token and returns the caller's identity.
func (s *AuthService) Authenticate(token string) (model.Identity, error) {
	claims, err := utils.ParseAccessToken(s.secret, token)
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return model.Identity{}, ErrTokenExpired
	case err != nil:
		return model.Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return model.Identity{Username: claims.Subject, IsAdmin: claims.Admin}, nil
}

// Me returns the stored account of username.
func (s *AuthService) Me(ctx context.Context, username string) (model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return u, err
}

// SeedAdmin creates the admin account <username>@onstream.com when neither
// the username nor that email exists yet.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string) error {
	in := RegisterInput{Username: username, Email: strings.ToLower(username) + "@onstream.com", Password: password}
	if err := validation.Struct(in); err != nil {
		return invalid(err)
	}
	_, err := s.create(ctx, in, true)
	switch {
	case errors.Is(err, ErrConflict):
		logging.Debug().Str("username", username).Msg("admin user already present")
		return nil
	case err != nil:
		return err
	}
	logging.Info().Str("username", username).Msg("admin user created")
	return nil
}
