package httputil

// Cookie and header names used by cookie-based authentication.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	CSRFTokenCookie    = "csrf_token"
	CSRFTokenHeader    = "X-CSRF-Token"

	// RefreshTokenPath scopes the refresh cookie to the API so both the reader
	// and the admin refresh endpoints receive it.
	RefreshTokenPath = "/api/v1"
)
