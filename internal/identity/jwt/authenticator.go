// Package jwt provides stateless JWT authentication for readers and admins.
package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/identity"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// Config contains token lifetimes and the signing secret.
type Config struct {
	SecretKey                 string
	AccessTokenDuration       time.Duration
	RefreshTokenDuration      time.Duration
	AdminAccessTokenDuration  time.Duration
	AdminRefreshTokenDuration time.Duration
}

// Claims is the token payload.
type Claims struct {
	Type     domain.PrincipalType `json:"type"`
	TokenUse string               `json:"token_use"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies HS256 tokens.
type Authenticator struct {
	config Config
	now    func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config) *Authenticator {
	return &Authenticator{config: config, now: time.Now}
}

// GenerateTokens issues an access/refresh pair for the principal.
func (a *Authenticator) GenerateTokens(_ context.Context, principal domain.Principal) (*identity.TokenPair, error) {
	if !principal.Type.IsValid() {
		return nil, fmt.Errorf("unknown principal type %q", principal.Type)
	}

	accessTTL, refreshTTL := a.lifetimes(principal.Type)

	access, err := a.sign(principal, tokenUseAccess, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := a.sign(principal, tokenUseRefresh, refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &identity.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateAccessToken parses an access token into its principal.
func (a *Authenticator) ValidateAccessToken(_ context.Context, token string) (domain.Principal, error) {
	return a.parse(token, tokenUseAccess)
}

// ValidateRefreshToken parses a refresh token into its principal.
func (a *Authenticator) ValidateRefreshToken(_ context.Context, token string) (domain.Principal, error) {
	return a.parse(token, tokenUseRefresh)
}

func (a *Authenticator) lifetimes(t domain.PrincipalType) (time.Duration, time.Duration) {
	if t == domain.PrincipalAdmin {
		return a.config.AdminAccessTokenDuration, a.config.AdminRefreshTokenDuration
	}
	return a.config.AccessTokenDuration, a.config.RefreshTokenDuration
}

func (a *Authenticator) sign(principal domain.Principal, use string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Type:     principal.Type,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.SecretKey))
}

func (a *Authenticator) parse(tokenString, use string) (domain.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return []byte(a.config.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	}

	if claims.TokenUse != use {
		return domain.Principal{}, fmt.Errorf("%w: expected %s token", identity.ErrInvalidToken, use)
	}
	if claims.Subject == "" || !claims.Type.IsValid() {
		return domain.Principal{}, fmt.Errorf("%w: malformed claims", identity.ErrInvalidToken)
	}

	return domain.Principal{ID: claims.Subject, Type: claims.Type}, nil
}
