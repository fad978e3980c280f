package subscriptions

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Handler handles subscription HTTP requests.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new subscriptions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/subscriptions", h.ListPlans)
}

// RegisterProtectedRoutes registers routes for authenticated readers.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/subscriptions/subscribe", h.Subscribe)
	r.Get("/subscriptions/me", h.Current)
	r.Get("/subscriptions/history", h.History)
}

// RegisterAdminRoutes registers admin routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/subscriptions/plans", func(r chi.Router) {
		r.Get("/", h.ListPlans)
		r.Post("/", h.CreatePlan)
		r.Get("/{id}", h.GetPlan)
		r.Put("/{id}", h.UpdatePlan)
		r.Delete("/{id}", h.DeletePlan)
	})
	r.Put("/admin/users/{id}/subscription", h.AdminChangePlan)
	r.Get("/admin/users/{id}/subscriptions/history", h.AdminHistory)
}

// PlanRequest represents the body of plan create and update requests.
type PlanRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=100"`
	Description   string          `json:"description" validate:"max=1000"`
	PricePerMonth float64         `json:"price_per_month" validate:"gte=0"`
	Permissions   map[string]bool `json:"permissions"`
}

func (req PlanRequest) toInput() PlanInput {
	input := PlanInput{
		Name:          req.Name,
		Description:   req.Description,
		PricePerMonth: req.PricePerMonth,
		Permissions:   make(domain.Permissions, len(req.Permissions)),
	}
	for k, v := range req.Permissions {
		input.Permissions[domain.Permission(k)] = v
	}
	return input
}

// SubscribeRequest represents the body of subscribe requests.
type SubscribeRequest struct {
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

// ListPlans handles GET /subscriptions.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, plans)
}

// GetPlan handles GET /admin/subscriptions/plans/{id}.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	plan, err := h.service.GetPlan(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, plan)
}

// CreatePlan handles POST /admin/subscriptions/plans.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	plan, err := h.service.CreatePlan(r.Context(), req.toInput())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusCreated, plan)
}

// UpdatePlan handles PUT /admin/subscriptions/plans/{id}.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	plan, err := h.service.UpdatePlan(r.Context(), id, req.toInput())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, plan)
}

// DeletePlan handles DELETE /admin/subscriptions/plans/{id}.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePlan(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Subscribe handles POST /subscriptions/subscribe.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusForbidden, "reader account required")
		return
	}
	h.subscribe(w, r, userID)
}

// AdminChangePlan handles PUT /admin/users/{id}/subscription.
func (h *Handler) AdminChangePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r)
	if !ok {
		return
	}
	h.subscribe(w, r, userID)
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request, userID string) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), userID, req.PlanID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, sub)
}

// Current handles GET /subscriptions/me.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusForbidden, "reader account required")
		return
	}

	sub, err := h.service.Current(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, sub)
}

// History handles GET /subscriptions/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusForbidden, "reader account required")
		return
	}
	h.history(w, r, userID)
}

// AdminHistory handles GET /admin/users/{id}/subscriptions/history.
func (h *Handler) AdminHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r)
	if !ok {
		return
	}
	h.history(w, r, userID)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, userID string) {
	subs, err := h.service.History(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, subs)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrNoActiveSubscription):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPlanNameExists), errors.Is(err, ErrPlanInUse):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownPermission):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		ctxlog.FromContext(r.Context()).Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}
