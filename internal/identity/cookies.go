package identity

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
)

// CookieSettings contains settings for authentication cookies.
type CookieSettings struct {
	Secure                    bool
	Domain                    string
	AccessTokenDuration       time.Duration
	RefreshTokenDuration      time.Duration
	AdminAccessTokenDuration  time.Duration
	AdminRefreshTokenDuration time.Duration
}

func (c CookieSettings) durations(t domain.PrincipalType) (access, refresh time.Duration) {
	if t == domain.PrincipalAdmin {
		return c.AdminAccessTokenDuration, c.AdminRefreshTokenDuration
	}
	return c.AccessTokenDuration, c.RefreshTokenDuration
}

// setAuthCookies sets access_token, refresh_token, and csrf_token cookies.
func setAuthCookies(w http.ResponseWriter, settings CookieSettings, t domain.PrincipalType, tokens *TokenPair) {
	accessTTL, refreshTTL := settings.durations(t)

	http.SetCookie(w, &http.Cookie{
		Name:     httputil.AccessTokenCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     httputil.RefreshTokenCookie,
		Value:    tokens.RefreshToken,
		Path:     httputil.RefreshTokenPath,
		Domain:   settings.Domain,
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	// Readable by JavaScript so the client can echo it in X-CSRF-Token.
	http.SetCookie(w, &http.Cookie{
		Name:     httputil.CSRFTokenCookie,
		Value:    generateCSRFToken(),
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: false,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookies removes all auth cookies by setting Max-Age=0.
func clearAuthCookies(w http.ResponseWriter, settings CookieSettings) {
	for _, c := range []struct {
		name     string
		path     string
		httpOnly bool
		sameSite http.SameSite
	}{
		{httputil.AccessTokenCookie, "/", true, http.SameSiteLaxMode},
		{httputil.RefreshTokenCookie, httputil.RefreshTokenPath, true, http.SameSiteStrictMode},
		{httputil.CSRFTokenCookie, "/", false, http.SameSiteLaxMode},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Domain:   settings.Domain,
			MaxAge:   -1,
			HttpOnly: c.httpOnly,
			Secure:   settings.Secure,
			SameSite: c.sameSite,
		})
	}
}

// refreshTokenFromRequest extracts the refresh token from the cookie or, for
// API clients, from a JSON body.
func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(httputil.RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httputil.DecodeOptionalJSON(r, &body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func generateCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
