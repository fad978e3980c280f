package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SubscriptionReader exposes a reader's active plan for admin views.
type SubscriptionReader interface {
	ActiveSubscription(ctx context.Context, userID string) (*domain.UserSubscription, error)
}

// AdminHandler handles admin authentication and account management.
type AdminHandler struct {
	service        *Service
	subscriptions  SubscriptionReader
	validator      *validator.Validate
	cookieSettings CookieSettings
}

// NewAdminHandler creates a new admin identity handler.
func NewAdminHandler(service *Service, subscriptions SubscriptionReader, cookieSettings CookieSettings) *AdminHandler {
	return &AdminHandler{
		service:        service,
		subscriptions:  subscriptions,
		validator:      validator.New(),
		cookieSettings: cookieSettings,
	}
}

// RegisterRoutes registers unauthenticated admin auth routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	if limit != nil {
		r.With(limit).Post("/admin/auth/login", h.Login)
	} else {
		r.Post("/admin/auth/login", h.Login)
	}
	r.Post("/admin/auth/refresh", h.Refresh)
	r.Post("/admin/auth/logout", h.Logout)
}

// RegisterAdminRoutes registers routes that require an admin token.
func (h *AdminHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/admin/auth/me", h.Me)
	r.Post("/admin/auth/register", h.CreateAdmin)

	r.Get("/admin/admins", h.ListAdmins)
	r.Get("/admin/admins/{id}", h.GetAdmin)
	r.Put("/admin/admins/{id}", h.UpdateAdmin)
	r.Delete("/admin/admins/{id}", h.DeleteAdmin)
	r.Put("/admin/admins/{id}/change-password", h.ChangeAdminPassword)

	r.Get("/admin/users", h.ListUsers)
	r.Get("/admin/users/{id}", h.GetUser)
	r.Put("/admin/users/{id}", h.UpdateUser)
	r.Delete("/admin/users/{id}", h.DeleteUser)
}

// AdminResponse wraps an administrator in auth responses.
type AdminResponse struct {
	Admin *domain.Admin `json:"admin"`
}

// CreateAdminRequest represents the body of POST /admin/auth/register.
type CreateAdminRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// UpdateAdminRequest represents the body of PUT /admin/admins/{id}.
type UpdateAdminRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ChangePasswordRequest represents the body of PUT /admin/admins/{id}/change-password.
type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// UpdateUserRequest represents the body of PUT /admin/users/{id}.
type UpdateUserRequest struct {
	Email       *string            `json:"email" validate:"omitempty,email"`
	Username    *string            `json:"username" validate:"omitempty,min=2,max=80"`
	Preferences domain.Preferences `json:"preferences"`
}

// UserDetail is a reader with their active subscription.
type UserDetail struct {
	*domain.User
	Subscription *domain.UserSubscription `json:"subscription"`
}

// UserListResponse is a page of readers.
type UserListResponse struct {
	Users      []domain.User `json:"users"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
}

// Login handles POST /admin/auth/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	admin, tokens, err := h.service.AdminLogin(r.Context(), LoginInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	setAuthCookies(w, h.cookieSettings, domain.PrincipalAdmin, tokens)
	httputil.Success(w, http.StatusOK, AdminResponse{Admin: admin})
}

// Refresh handles POST /admin/auth/refresh.
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := refreshTokenFromRequest(r)
	if refreshToken == "" {
		httputil.Error(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	tokens, err := h.service.RefreshTokens(r.Context(), refreshToken, domain.PrincipalAdmin)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	setAuthCookies(w, h.cookieSettings, domain.PrincipalAdmin, tokens)
	httputil.Message(w, http.StatusOK, "token refreshed")
}

// Logout handles POST /admin/auth/logout.
func (h *AdminHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	clearAuthCookies(w, h.cookieSettings)
	httputil.Message(w, http.StatusOK, "logged out")
}

// Me handles GET /admin/auth/me.
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, _ := httputil.GetPrincipal(r.Context())

	admin, err := h.service.GetAdminByID(r.Context(), principal.ID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, AdminResponse{Admin: admin})
}

// CreateAdmin handles POST /admin/auth/register.
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	admin, err := h.service.CreateAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, AdminResponse{Admin: admin})
}

// ListAdmins handles GET /admin/admins.
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.service.ListAdmins(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, admins)
}

// GetAdmin handles GET /admin/admins/{id}.
func (h *AdminHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	admin, err := h.service.GetAdminByID(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, admin)
}

// UpdateAdmin handles PUT /admin/admins/{id}.
func (h *AdminHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req UpdateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	admin, err := h.service.UpdateAdminEmail(r.Context(), id, req.Email)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, admin)
}

// DeleteAdmin handles DELETE /admin/admins/{id}.
func (h *AdminHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	principal, _ := httputil.GetPrincipal(r.Context())

	if err := h.service.DeleteAdmin(r.Context(), principal.ID, id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangeAdminPassword handles PUT /admin/admins/{id}/change-password.
func (h *AdminHandler) ChangeAdminPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.ChangeAdminPassword(r.Context(), id, req.NewPassword); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Message(w, http.StatusOK, "password changed")
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r, 20, 100)

	users, total, err := h.service.ListUsers(r.Context(), UserFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, UserListResponse{
		Users:      users,
		Total:      total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: httputil.TotalPages(total, page.PerPage),
	})
}

// GetUser handles GET /admin/users/{id}.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	detail := UserDetail{User: user}
	if h.subscriptions != nil {
		sub, err := h.subscriptions.ActiveSubscription(r.Context(), id)
		if err != nil {
			ctxlog.FromContext(r.Context()).Warn("load user subscription", "user_id", id, "error", err)
		}
		detail.Subscription = sub
	}

	httputil.Success(w, http.StatusOK, detail)
}

// UpdateUser handles PUT /admin/users/{id}.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, UpdateUserInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /admin/users/{id}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}
