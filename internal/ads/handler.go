package ads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	adminDefaultPerPage = 10
	adminMaxPerPage     = 100
)

// Handler handles ad HTTP requests.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new ads handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ads", h.List)
	r.Get("/ads/by-placement", h.ByPlacement)
	r.Get("/ads/{id}", h.Get)
	r.Post("/ads/{id}/impression", h.Impression)
	r.Post("/ads/{id}/click", h.Click)
	// Tracking links embedded in ad markup use GET.
	r.Get("/ads/{id}/click", h.Click)
}

// RegisterAdminRoutes registers admin routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/ads", func(r chi.Router) {
		r.Get("/", h.AdminList)
		r.Post("/", h.Create)
		r.Get("/statistics", h.Statistics)
		r.Get("/{id}", h.AdminGet)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/toggle", h.Toggle)
	})
}

// CreateAdRequest represents the body of ad create requests.
type CreateAdRequest struct {
	Title     string `json:"title" validate:"required,max=255"`
	Content   string `json:"content"`
	ImageURL  string `json:"image_url" validate:"omitempty,url,max=2048"`
	TargetURL string `json:"target_url" validate:"omitempty,url,max=2048"`
	AdType    string `json:"ad_type" validate:"required"`
	IsActive  *bool  `json:"is_active"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// UpdateAdRequest represents the body of ad update requests. Omitted fields
// are left unchanged; empty dates clear the schedule bound.
type UpdateAdRequest struct {
	Title     *string `json:"title" validate:"omitempty,max=255"`
	Content   *string `json:"content"`
	ImageURL  *string `json:"image_url" validate:"omitempty,max=2048"`
	TargetURL *string `json:"target_url" validate:"omitempty,max=2048"`
	AdType    *string `json:"ad_type"`
	IsActive  *bool   `json:"is_active"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func (req UpdateAdRequest) toInput() AdUpdate {
	input := AdUpdate{
		Title:     req.Title,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		TargetURL: req.TargetURL,
		IsActive:  req.IsActive,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if req.AdType != nil {
		t := domain.AdType(*req.AdType)
		input.AdType = &t
	}
	return input
}

// ImpressionRequest represents the optional body of impression requests.
type ImpressionRequest struct {
	SessionID string `json:"session_id" validate:"max=128"`
}

// AdResponse wraps a single public ad.
type AdResponse struct {
	Ad      *domain.Ad `json:"ad"`
	ShowAds bool       `json:"show_ads"`
}

// AdListResponse is the admin ad list page.
type AdListResponse struct {
	Ads        []AdminAd   `json:"ads"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
	Filters    ListFilters `json:"filters"`
}

// ListFilters echoes the admin list filters.
type ListFilters struct {
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
}

// ToggleResponse is returned after toggling an ad.
type ToggleResponse struct {
	Msg string   `json:"msg"`
	Ad  *AdminAd `json:"ad"`
}

// List handles GET /ads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := DefaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	selection, err := h.service.Select(r.Context(), httputil.GetPermissions(r.Context()),
		domain.AdType(q.Get("type")), limit, q.Get("strategy"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, selection)
}

// ByPlacement handles GET /ads/by-placement.
func (h *Handler) ByPlacement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	selection, err := h.service.ByPlacement(r.Context(), httputil.GetPermissions(r.Context()),
		ParsePlacements(q.Get("placement")), q.Get("strategy"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, selection)
}

// Get handles GET /ads/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ad, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, AdResponse{Ad: ad, ShowAds: ShowAds(httputil.GetPermissions(r.Context()))})
}

// Impression handles POST /ads/{id}/impression.
func (h *Handler) Impression(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req ImpressionRequest
	if err := httputil.DecodeOptionalJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	err := h.service.RecordImpression(r.Context(), ImpressionInput{
		AdID:      id,
		UserID:    httputil.GetUserID(r.Context()),
		SessionID: req.SessionID,
		IPAddress: httputil.ClientIP(r),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Message(w, http.StatusOK, "impression recorded")
}

// Click handles POST and GET /ads/{id}/click.
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.RecordClick(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Message(w, http.StatusOK, "click recorded")
}

// AdminList handles GET /admin/ads.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r, adminDefaultPerPage, adminMaxPerPage)
	filters := ListFilters{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
	}

	list, total, err := h.service.AdminList(r.Context(), ListFilter{
		Status: StatusFilter(filters.Status),
		Type:   domain.AdType(filters.Type),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, AdListResponse{
		Ads:        list,
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      total,
		TotalPages: httputil.TotalPages(total, page.PerPage),
		Filters:    filters,
	})
}

// AdminGet handles GET /admin/ads/{id}.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.AdminGet(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, detail)
}

// Create handles POST /admin/ads.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	ad, err := h.service.Create(r.Context(), AdInput{
		Title:     req.Title,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		TargetURL: req.TargetURL,
		AdType:    domain.AdType(req.AdType),
		IsActive:  req.IsActive,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusCreated, ad)
}

// Update handles PUT /admin/ads/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req UpdateAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	ad, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, ad)
}

// Toggle handles PUT /admin/ads/{id}/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ad, err := h.service.Toggle(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	msg := "ad deactivated"
	if ad.IsActive {
		msg = "ad activated"
	}
	httputil.Success(w, http.StatusOK, ToggleResponse{Msg: msg, Ad: ad})
}

// Delete handles DELETE /admin/ads/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Statistics handles GET /admin/ads/statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, stats)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAdNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAdType),
		errors.Is(err, ErrEmptyTitle),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidDateRange),
		errors.Is(err, ErrInvalidStatusFilter):
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
