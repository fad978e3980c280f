package notifications

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotificationNotFound, Status: http.StatusNotFound},
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound},
	{Error: ErrNoInbox, Status: http.StatusForbidden, Message: "reader account required"},
	{Error: ErrPushDisabled, Status: http.StatusNotFound},
}

// Pagination constants.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications/vapid-public-key", h.VAPIDPublicKey)
}

// RegisterProtectedRoutes registers inbox, push and newsletter routes (require auth).
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/notifications", h.Inbox)
	r.Get("/notifications/all", h.List)
	r.Post("/notifications/{id}/read", h.MarkRead)
	r.Post("/notifications/read-all", h.MarkAllRead)
	r.Post("/notifications/subscribe", h.Subscribe)
	r.Post("/notifications/unsubscribe", h.Unsubscribe)
	r.Post("/me/newsletter/toggle", h.ToggleNewsletter)
}

// RegisterAdminRoutes registers admin routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/admin/digest/run", h.RunDigest)
}

// SubscribeRequest is the browser PushSubscription JSON.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url,max=2048"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

// UnsubscribeRequest names the endpoint to remove.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// NotificationListResponse is a page of notifications.
type NotificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Page          int                   `json:"page"`
	PerPage       int                   `json:"per_page"`
	Total         int                   `json:"total"`
	TotalPages    int                   `json:"total_pages"`
}

// VAPIDPublicKey handles GET /notifications/vapid-public-key.
func (h *Handler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.service.VAPIDPublicKey()
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]string{"public_key": key})
}

// Inbox handles GET /notifications.
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	principal, _ := httputil.GetPrincipal(r.Context())

	inbox, err := h.service.Inbox(r.Context(), principal)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, inbox)
}

// List handles GET /notifications/all.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := httputil.GetPrincipal(r.Context())
	page := httputil.ParsePage(r, DefaultPerPage, MaxPerPage)

	list, total, err := h.service.List(r.Context(), principal, page.PerPage, page.Offset())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, NotificationListResponse{
		Notifications: list,
		Page:          page.Page,
		PerPage:       page.PerPage,
		Total:         total,
		TotalPages:    httputil.TotalPages(total, page.PerPage),
	})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	principal, _ := httputil.GetPrincipal(r.Context())

	notification, err := h.service.MarkRead(r.Context(), principal, id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, notification)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	principal, _ := httputil.GetPrincipal(r.Context())

	updated, err := h.service.MarkAllRead(r.Context(), principal)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]int{"updated": updated})
}

// Subscribe handles POST /notifications/subscribe.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	principal, _ := httputil.GetPrincipal(r.Context())

	sub, err := h.service.Subscribe(r.Context(), principal, SubscribeInput{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, sub)
}

// Unsubscribe handles POST /notifications/unsubscribe.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	principal, _ := httputil.GetPrincipal(r.Context())

	if err := h.service.Unsubscribe(r.Context(), principal, req.Endpoint); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Message(w, http.StatusOK, "unsubscribed")
}

// ToggleNewsletter handles POST /me/newsletter/toggle.
func (h *Handler) ToggleNewsletter(w http.ResponseWriter, r *http.Request) {
	principal, _ := httputil.GetPrincipal(r.Context())

	subscribed, err := h.service.ToggleNewsletter(r.Context(), principal)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]bool{"is_subscribed": subscribed})
}

// RunDigest handles POST /admin/digest/run.
func (h *Handler) RunDigest(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunDigest(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, result)
}
