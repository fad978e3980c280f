// Package identity manages reader and admin accounts, passwords and tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"golang.org/x/crypto/bcrypt"
)

// TokenPair is an access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticator issues and validates tokens for both principal types.
type Authenticator interface {
	GenerateTokens(ctx context.Context, principal domain.Principal) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, token string) (domain.Principal, error)
	ValidateRefreshToken(ctx context.Context, token string) (domain.Principal, error)
}

// UserCreatedHandler is notified after a reader registers.
type UserCreatedHandler interface {
	OnUserCreated(ctx context.Context, user *domain.User) error
}

// Service implements account business logic.
type Service struct {
	repo          Repository
	authenticator Authenticator
	onUserCreated UserCreatedHandler
}

// NewService creates a new identity service. onUserCreated may be nil.
func NewService(repo Repository, authenticator Authenticator, onUserCreated UserCreatedHandler) *Service {
	return &Service{
		repo:          repo,
		authenticator: authenticator,
		onUserCreated: onUserCreated,
	}
}

// RegisterInput contains reader registration data.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Register creates a reader account and logs it in.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, *TokenPair, error) {
	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Email:       normalizeEmail(input.Email),
		Username:    strings.TrimSpace(input.Username),
		Password:    hash,
		Preferences: domain.Preferences{},
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, nil, err
	}

	if s.onUserCreated != nil {
		if err := s.onUserCreated.OnUserCreated(ctx, user); err != nil {
			ctxlog.FromContext(ctx).Warn("post-registration hook failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	tokens, err := s.authenticator.GenerateTokens(ctx, domain.Principal{ID: user.ID, Type: domain.PrincipalUser})
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	return user, tokens, nil
}

// LoginInput contains credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Login authenticates a reader.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *TokenPair, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	if !checkPassword(user.Password, input.Password) {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.authenticator.GenerateTokens(ctx, domain.Principal{ID: user.ID, Type: domain.PrincipalUser})
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}
	return user, tokens, nil
}

// AdminLogin authenticates an administrator.
func (s *Service) AdminLogin(ctx context.Context, input LoginInput) (*domain.Admin, *TokenPair, error) {
	admin, err := s.repo.GetAdminByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get admin: %w", err)
	}

	if !checkPassword(admin.Password, input.Password) {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.authenticator.GenerateTokens(ctx, domain.Principal{ID: admin.ID, Type: domain.PrincipalAdmin})
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}
	return admin, tokens, nil
}

// RefreshTokens re-mints both tokens from a refresh token. The token must have
// been issued to the expected principal type and the account must still exist.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string, expected domain.PrincipalType) (*TokenPair, error) {
	principal, err := s.authenticator.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if principal.Type != expected {
		return nil, ErrWrongPrincipalType
	}

	switch principal.Type {
	case domain.PrincipalAdmin:
		_, err = s.repo.GetAdminByID(ctx, principal.ID)
	default:
		_, err = s.repo.GetUserByID(ctx, principal.ID)
	}
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrAdminNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}

	tokens, err := s.authenticator.GenerateTokens(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	return tokens, nil
}

// ValidateAccessToken validates an access token. Implements httputil.TokenValidator.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (domain.Principal, error) {
	return s.authenticator.ValidateAccessToken(ctx, token)
}

// GetUserByID retrieves a reader.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// GetAdminByID retrieves an administrator.
func (s *Service) GetAdminByID(ctx context.Context, id string) (*domain.Admin, error) {
	return s.repo.GetAdminByID(ctx, id)
}

// UpdatePreferences replaces the reader's preferences object.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs domain.Preferences) (*domain.User, error) {
	if prefs == nil {
		return nil, ErrInvalidPreferences
	}
	if err := s.repo.UpdatePreferences(ctx, userID, prefs); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, userID)
}

// ListUsers returns a page of readers and the total count.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]domain.User, int, error) {
	return s.repo.ListUsers(ctx, filter)
}

// UpdateUserInput contains optional reader fields editable by admins.
type UpdateUserInput struct {
	Email       *string
	Username    *string
	Preferences domain.Preferences
}

// UpdateUser applies admin edits to a reader.
func (s *Service) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		user.Email = normalizeEmail(*input.Email)
	}
	if input.Username != nil {
		user.Username = strings.TrimSpace(*input.Username)
	}
	if input.Preferences != nil {
		user.Preferences = input.Preferences
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a reader and, by cascade, their interactions.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.DeleteUser(ctx, id)
}

// CreateAdmin registers a new administrator.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (*domain.Admin, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := &domain.Admin{Email: normalizeEmail(email), Password: hash}
	if err := s.repo.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// ListAdmins returns all administrators.
func (s *Service) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	return s.repo.ListAdmins(ctx)
}

// UpdateAdminEmail changes an administrator's email.
func (s *Service) UpdateAdminEmail(ctx context.Context, id, email string) (*domain.Admin, error) {
	admin, err := s.repo.GetAdminByID(ctx, id)
	if err != nil {
		return nil, err
	}
	admin.Email = normalizeEmail(email)
	if err := s.repo.UpdateAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// ChangeAdminPassword sets a new password for an administrator.
func (s *Service) ChangeAdminPassword(ctx context.Context, id, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.UpdateAdminPassword(ctx, id, hash)
}

// DeleteAdmin removes an administrator. Admins cannot delete themselves.
func (s *Service) DeleteAdmin(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrCannotDeleteSelf
	}
	return s.repo.DeleteAdmin(ctx, id)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
