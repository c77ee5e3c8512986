package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/auth"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/crypto"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
)

type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, user model.User) error
	GetUserByEmail(ctx context.Context, email string) (model.User, bool, error)
}

type TokenStore interface {
	CreateRefreshToken(ctx context.Context, token model.RefreshToken) error
	RefreshTokenExists(ctx context.Context, token string) (bool, error)
	DeleteRefreshToken(ctx context.Context, token string) (int64, error)
}

// AuthConfig carries the injected token and hashing policy.
type AuthConfig struct {
	AccessSecret    string
	RefreshSecret   string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
	AdminEmails     []string
}

type Auth struct {
	users  UserStore
	tokens TokenStore
	cfg    AuthConfig
	admins map[string]bool
}

func NewAuth(users UserStore, tokens TokenStore, cfg AuthConfig) *Auth {
	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = true
	}
	return &Auth{users: users, tokens: tokens, cfg: cfg, admins: admins}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AuthResult struct {
	User         UserSummary `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates a user and issues an initial token pair. The requested
// role is honored only for emails on the admin allow-list; everyone else
// becomes staff.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return AuthResult{}, ErrMissingFields
	}

	exists, err := a.users.EmailExists(ctx, in.Email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		log.Printf("auth: registration rejected, email %s already in use", in.Email)
		return AuthResult{}, ErrDuplicateEmail
	}

	hash, err := crypto.HashPassword(in.Password, a.cfg.BcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	role := model.RoleStaff
	if in.Role != "" && model.ValidRole(in.Role) && a.admins[in.Email] {
		role = in.Role
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	// Token persistence failing after the user row exists leaves the user
	// registered but logged out. That window is accepted; the caller just
	// logs in afterwards.
	accessToken, refreshToken, err := a.issueTokens(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		User:         UserSummary{ID: user.ID, Name: user.Name, Email: user.Email},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Login verifies credentials and issues a token pair. Unknown email and
// wrong password produce the same error value; only the log line differs.
func (a *Auth) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return AuthResult{}, ErrMissingFields
	}

	user, found, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("get user: %w", err)
	}
	if !found {
		log.Printf("auth: login failed, no user with email %s", email)
		return AuthResult{}, ErrInvalidCredentials
	}

	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		log.Printf("auth: login failed, wrong password for %s", email)
		return AuthResult{}, ErrInvalidCredentials
	}

	accessToken, refreshToken, err := a.issueTokens(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		User:         UserSummary{ID: user.ID, Name: user.Name, Email: user.Email},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout revokes a refresh token by deleting it from the store.
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrMissingToken
	}
	deleted, err := a.tokens.DeleteRefreshToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if deleted == 0 {
		return ErrInvalidToken
	}
	return nil
}

// Refresh rotates a refresh token: the old token must verify and still be
// present in the store, a fresh pair is issued and persisted, then the old
// token is deleted. Creating the new token before deleting the old one
// means the user never holds zero valid tokens mid-rotation.
func (a *Auth) Refresh(ctx context.Context, oldToken string) (TokenPair, error) {
	if oldToken == "" {
		return TokenPair{}, ErrMissingToken
	}

	claims, err := auth.ParseToken(a.cfg.RefreshSecret, oldToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	present, err := a.tokens.RefreshTokenExists(ctx, oldToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("check token: %w", err)
	}
	if !present {
		log.Printf("auth: refresh rejected, token for user %s revoked", claims.UserID)
		return TokenPair{}, ErrInvalidToken
	}

	accessToken, err := auth.NewAccessToken(a.cfg.AccessSecret, a.cfg.Issuer, a.cfg.AccessTokenTTL, auth.Claims{
		UserID: claims.UserID,
		Role:   claims.Role,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := auth.NewRefreshToken(a.cfg.RefreshSecret, a.cfg.Issuer, a.cfg.RefreshTokenTTL, auth.Claims{
		UserID: claims.UserID,
		Role:   claims.Role,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	now := time.Now().UTC()
	if err := a.tokens.CreateRefreshToken(ctx, model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    claims.UserID,
		Token:     refreshToken,
		ExpiresAt: now.Add(a.cfg.RefreshTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return TokenPair{}, fmt.Errorf("store token: %w", err)
	}

	deleted, err := a.tokens.DeleteRefreshToken(ctx, oldToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("delete token: %w", err)
	}
	if deleted == 0 {
		// A concurrent rotation consumed the old token first. Discard the
		// pair created above and fail like any other revoked-token use.
		_, _ = a.tokens.DeleteRefreshToken(ctx, refreshToken)
		return TokenPair{}, ErrInvalidToken
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (a *Auth) issueTokens(ctx context.Context, user model.User) (string, string, error) {
	claims := auth.Claims{UserID: user.ID, Role: user.Role}

	accessToken, err := auth.NewAccessToken(a.cfg.AccessSecret, a.cfg.Issuer, a.cfg.AccessTokenTTL, claims)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := auth.NewRefreshToken(a.cfg.RefreshSecret, a.cfg.Issuer, a.cfg.RefreshTokenTTL, claims)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}

	now := time.Now().UTC()
	if err := a.tokens.CreateRefreshToken(ctx, model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(a.cfg.RefreshTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return "", "", fmt.Errorf("store token: %w", err)
	}

	return accessToken, refreshToken, nil
}
