package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	tokens map[string]domain.Principal
}

func (s *stubValidator) ValidateAccessToken(_ context.Context, token string) (domain.Principal, error) {
	if p, ok := s.tokens[token]; ok {
		return p, nil
	}
	return domain.Principal{}, errors.New("invalid token")
}

type stubResolver struct {
	perms domain.Permissions
	err   error
	calls int
}

func (s *stubResolver) PermissionsFor(_ context.Context, _ string) (domain.Permissions, error) {
	s.calls++
	return s.perms, s.err
}

func newStubValidator() *stubValidator {
	return &stubValidator{tokens: map[string]domain.Principal{
		"user-token":  {ID: "u1", Type: domain.PrincipalUser},
		"admin-token": {ID: "a1", Type: domain.PrincipalAdmin},
	}}
}

func decodeMsg(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["msg"]
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantID     string
	}{
		{
			name:       "missing token",
			setup:      func(_ *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer user-token")
			},
			wantStatus: http.StatusOK,
			wantID:     "u1",
		},
		{
			name: "cookie wins over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "admin-token"})
				r.Header.Set("Authorization", "Bearer user-token")
			},
			wantStatus: http.StatusOK,
			wantID:     "a1",
		},
		{
			name: "stale cookie falls back to header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "expired-token"})
				r.Header.Set("Authorization", "Bearer user-token")
			},
			wantStatus: http.StatusOK,
			wantID:     "u1",
		},
		{
			name: "stale cookie without header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "expired-token"})
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Token abc")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer nope")
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			h := AuthMiddleware(newStubValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, _ := GetPrincipal(r.Context())
				gotID = p.ID
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantID, gotID)
		})
	}
}

func TestOptionalAuthMiddleware_InvalidTokenIsAnonymous(t *testing.T) {
	var authenticated bool
	h := OptionalAuthMiddleware(newStubValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authenticated = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, authenticated)
}

func TestOptionalAuthMiddleware_StaleCookieFallsBackToHeader(t *testing.T) {
	var (
		principal  domain.Principal
		fromCookie bool
	)
	h := OptionalAuthMiddleware(newStubValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = GetPrincipal(r.Context())
		fromCookie, _ = r.Context().Value(cookieAuthKey).(bool)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "expired-token"})
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", principal.ID)
	assert.False(t, fromCookie)
}

func TestPermissionsMiddleware(t *testing.T) {
	t.Run("anonymous gets empty set without lookup", func(t *testing.T) {
		resolver := &stubResolver{}
		var got domain.Permissions
		h := PermissionsMiddleware(resolver)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = GetPermissions(r.Context())
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Empty(t, got)
		assert.Equal(t, 0, resolver.calls)
	})

	t.Run("admin gets everything", func(t *testing.T) {
		resolver := &stubResolver{}
		var got domain.Permissions
		h := PermissionsMiddleware(resolver)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = GetPermissions(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), domain.Principal{ID: "a1", Type: domain.PrincipalAdmin}))

		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, got.Has(domain.PermissionExclusiveContent))
		assert.Equal(t, 0, resolver.calls)
	})

	t.Run("user resolved from plan", func(t *testing.T) {
		resolver := &stubResolver{perms: domain.Permissions{domain.PermissionComment: true}}
		var got domain.Permissions
		h := PermissionsMiddleware(resolver)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = GetPermissions(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), domain.Principal{ID: "u1", Type: domain.PrincipalUser}))

		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, got.Has(domain.PermissionComment))
		assert.False(t, got.Has(domain.PermissionNoAds))
		assert.Equal(t, 1, resolver.calls)
	})

	t.Run("resolver failure is 500", func(t *testing.T) {
		resolver := &stubResolver{err: errors.New("db down")}
		h := PermissionsMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), domain.Principal{ID: "u1", Type: domain.PrincipalUser}))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequirePermission(domain.PermissionSaveArticle)(ok)

	// Anonymous
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Lacking permission
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	ctx := WithPrincipal(req.Context(), domain.Principal{ID: "u1", Type: domain.PrincipalUser})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithPermissions(ctx, domain.Permissions{})))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient permissions", decodeMsg(t, rec))

	// Granted
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithPermissions(ctx, domain.Permissions{domain.PermissionSaveArticle: true})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePrincipal(t *testing.T) {
	h := RequirePrincipal(domain.PrincipalAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithPrincipal(req.Context(), domain.Principal{ID: "u1", Type: domain.PrincipalUser})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithPrincipal(req.Context(), domain.Principal{ID: "a1", Type: domain.PrincipalAdmin})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFMiddleware(t *testing.T) {
	chain := AuthMiddleware(newStubValidator())(CSRFMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	tests := []struct {
		name       string
		method     string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{
			name:   "cookie auth without header",
			method: http.MethodPost,
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "user-token"})
				r.AddCookie(&http.Cookie{Name: CSRFTokenCookie, Value: "csrf"})
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:   "cookie auth with matching header",
			method: http.MethodPost,
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "user-token"})
				r.AddCookie(&http.Cookie{Name: CSRFTokenCookie, Value: "csrf"})
				r.Header.Set(CSRFTokenHeader, "csrf")
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "cookie auth safe method",
			method: http.MethodGet,
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "user-token"})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "bearer auth is exempt",
			method: http.MethodDelete,
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer user-token")
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			chain.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
