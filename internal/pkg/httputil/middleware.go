package httputil

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
)

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if originsSet[origin] || originsSet["*"] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CSRFTokenHeader)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

// Context keys for storing request identity.
const (
	PrincipalKey   contextKey = "principal"
	PermissionsKey contextKey = "permissions"
	cookieAuthKey  contextKey = "cookie_auth"
)

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (domain.Principal, error)
}

// PermissionResolver resolves the plan permissions of a reader.
type PermissionResolver interface {
	PermissionsFor(ctx context.Context, userID string) (domain.Permissions, error)
}

// authenticate validates the access token cookie and falls back to the
// Authorization header when the cookie is absent or rejected. The second
// value reports whether the cookie authenticated the request.
func authenticate(r *http.Request, validator TokenValidator) (domain.Principal, bool, error) {
	var cookieErr error
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		principal, err := validator.ValidateAccessToken(r.Context(), cookie.Value)
		if err == nil {
			return principal, true, nil
		}
		cookieErr = err
	}

	token, err := bearerToken(r)
	if err != nil {
		return domain.Principal{}, false, err
	}
	if token == "" {
		if cookieErr != nil {
			return domain.Principal{}, false, fmt.Errorf("%w: %w", errInvalidToken, cookieErr)
		}
		return domain.Principal{}, false, errMissingToken
	}

	principal, err := validator.ValidateAccessToken(r.Context(), token)
	if err != nil {
		return domain.Principal{}, false, fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	return principal, false, nil
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errInvalidAuthHeader
	}
	return parts[1], nil
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, fromCookie, err := authenticate(r, validator)
			switch {
			case errors.Is(err, errInvalidAuthHeader):
				Error(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			case errors.Is(err, errMissingToken):
				Error(w, http.StatusUnauthorized, "missing access token")
				return
			case err != nil:
				Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			ctx = context.WithValue(ctx, cookieAuthKey, fromCookie)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches the principal when a valid token is present
// and lets anonymous requests through otherwise.
func OptionalAuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, fromCookie, err := authenticate(r, validator)
			if err != nil {
				if !errors.Is(err, errMissingToken) {
					ctxlog.FromContext(r.Context()).Debug("ignoring invalid optional token", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			ctx = context.WithValue(ctx, cookieAuthKey, fromCookie)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PermissionsMiddleware resolves the permission set of the current principal.
// Anonymous requests get an empty set, admins get every permission.
func PermissionsMiddleware(resolver PermissionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())

			perms := domain.Permissions{}
			switch {
			case !ok:
			case principal.IsAdmin():
				perms = domain.FullPermissions()
			default:
				resolved, err := resolver.PermissionsFor(r.Context(), principal.ID)
				if err != nil {
					ctxlog.FromContext(r.Context()).Error("resolve permissions", "error", err, "user_id", principal.ID)
					Error(w, http.StatusInternalServerError, "internal error")
					return
				}
				perms = resolved
			}

			ctx := context.WithValue(r.Context(), PermissionsKey, perms)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal rejects principals of a different type.
func RequirePrincipal(t domain.PrincipalType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if principal.Type != t {
				Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects requests whose permission set lacks perm.
// Must run after PermissionsMiddleware.
func RequirePermission(perm domain.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetPrincipal(r.Context()); !ok {
				Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !GetPermissions(r.Context()).Has(perm) {
				Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFMiddleware enforces the double-submit check for cookie-authenticated
// state-changing requests. Bearer-token clients are not affected.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCookie, _ := r.Context().Value(cookieAuthKey).(bool)
		if !fromCookie || !isStateChanging(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CSRFTokenCookie)
		header := r.Header.Get(CSRFTokenHeader)
		if err != nil || cookie.Value == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			Error(w, http.StatusForbidden, "invalid csrf token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// GetPrincipal extracts the authenticated principal from context.
func GetPrincipal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(domain.Principal)
	return p, ok
}

// GetUserID returns the reader ID from context, or "" for anonymous and admin requests.
func GetUserID(ctx context.Context) string {
	if p, ok := GetPrincipal(ctx); ok && p.Type == domain.PrincipalUser {
		return p.ID
	}
	return ""
}

// GetPermissions returns the permission set resolved for the request.
func GetPermissions(ctx context.Context) domain.Permissions {
	if perms, ok := ctx.Value(PermissionsKey).(domain.Permissions); ok {
		return perms
	}
	return domain.Permissions{}
}

// WithPrincipal stores a principal in the context. Used by tests and jobs.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// WithPermissions stores a permission set in the context.
func WithPermissions(ctx context.Context, perms domain.Permissions) context.Context {
	return context.WithValue(ctx, PermissionsKey, perms)
}
