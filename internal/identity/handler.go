package identity

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrAdminNotFound, Status: http.StatusNotFound},
	{Error: ErrEmailExists, Status: http.StatusConflict},
	{Error: ErrUsernameExists, Status: http.StatusConflict},
	{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
	{Error: ErrInvalidToken, Status: http.StatusUnauthorized},
	{Error: ErrWrongPrincipalType, Status: http.StatusUnauthorized},
	{Error: ErrCannotDeleteSelf, Status: http.StatusBadRequest},
	{Error: ErrInvalidPreferences, Status: http.StatusBadRequest},
}

// Handler handles reader authentication and profile requests.
type Handler struct {
	service        *Service
	validator      *validator.Validate
	cookieSettings CookieSettings
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service, cookieSettings CookieSettings) *Handler {
	return &Handler{
		service:        service,
		validator:      validator.New(),
		cookieSettings: cookieSettings,
	}
}

// RegisterRoutes registers public auth routes. limit, when not nil, wraps the
// credential endpoints.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limit != nil {
				r.Use(limit)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
	})
}

// RegisterProtectedRoutes registers routes that require a reader token.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Put("/me/preferences", h.UpdatePreferences)
}

// RegisterRequest represents registration request body.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=80"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest represents login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse wraps a reader in auth responses.
type UserResponse struct {
	User *domain.User `json:"user"`
}

// MeResponse is the current reader with resolved plan permissions.
type MeResponse struct {
	User        *domain.User       `json:"user"`
	Permissions domain.Permissions `json:"permissions"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, tokens, err := h.service.Register(r.Context(), RegisterInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	setAuthCookies(w, h.cookieSettings, domain.PrincipalUser, tokens)
	httputil.Success(w, http.StatusCreated, UserResponse{User: user})
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, tokens, err := h.service.Login(r.Context(), LoginInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	setAuthCookies(w, h.cookieSettings, domain.PrincipalUser, tokens)
	httputil.Success(w, http.StatusOK, UserResponse{User: user})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := refreshTokenFromRequest(r)
	if refreshToken == "" {
		httputil.Error(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	tokens, err := h.service.RefreshTokens(r.Context(), refreshToken, domain.PrincipalUser)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	setAuthCookies(w, h.cookieSettings, domain.PrincipalUser, tokens)
	httputil.Message(w, http.StatusOK, "token refreshed")
}

// Logout handles POST /auth/logout. Tokens are stateless, so logout only
// clears the cookies.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	clearAuthCookies(w, h.cookieSettings)
	httputil.Message(w, http.StatusOK, "logged out")
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusForbidden, "reader account required")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, MeResponse{
		User:        user,
		Permissions: httputil.GetPermissions(r.Context()),
	})
}

// UpdatePreferences handles PUT /me/preferences. The body replaces the
// stored preferences object.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusForbidden, "reader account required")
		return
	}

	var prefs domain.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		httputil.Error(w, http.StatusBadRequest, "preferences must be a JSON object")
		return
	}

	user, err := h.service.UpdatePreferences(r.Context(), userID, prefs)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, UserResponse{User: user})
}
