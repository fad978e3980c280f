package comments

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

// Pagination constants.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Handler handles comment HTTP requests.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new comments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/articles/{id}/comments", h.List)
	r.Get("/comments/{id}", h.Get)
}

// RegisterProtectedRoutes registers routes for authenticated principals.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.With(httputil.RequirePermission(domain.PermissionComment)).Post("/articles/{id}/comments", h.Create)
	r.Put("/comments/{id}", h.Update)
	r.Delete("/comments/{id}", h.Delete)
}

// RegisterAdminRoutes registers moderation routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/comments", func(r chi.Router) {
		r.Get("/", h.AdminList)
		r.Put("/{id}/status", h.SetStatus)
		r.Delete("/{id}", h.Delete)
	})
}

// CommentRequest represents the body of comment create and update requests.
type CommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// StatusRequest represents the body of moderation requests.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active hidden"`
}

// CommentListResponse is a page of comments.
type CommentListResponse struct {
	Comments   []domain.Comment `json:"comments"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// List handles GET /articles/{id}/comments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	articleID, ok := parseID(w, r)
	if !ok {
		return
	}
	page := httputil.ParsePage(r, DefaultPerPage, MaxPerPage)

	list, total, err := h.service.List(r.Context(), articleID, page.PerPage, page.Offset())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, listResponse(list, total, page))
}

// Get handles GET /comments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	comment, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, comment)
}

// Create handles POST /articles/{id}/comments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	articleID, ok := parseID(w, r)
	if !ok {
		return
	}

	principal, _ := httputil.GetPrincipal(r.Context())
	if principal.Type != domain.PrincipalUser {
		httputil.Error(w, http.StatusForbidden, "reader account required")
		return
	}

	req, ok := h.decodeComment(w, r)
	if !ok {
		return
	}

	comment, err := h.service.Create(r.Context(), principal.ID, articleID, req.Text)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusCreated, comment)
}

// Update handles PUT /comments/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeComment(w, r)
	if !ok {
		return
	}

	comment, err := h.service.Update(r.Context(), httputil.GetUserID(r.Context()), id, req.Text)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, comment)
}

// Delete handles DELETE /comments/{id} and DELETE /admin/comments/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	principal, _ := httputil.GetPrincipal(r.Context())
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Message(w, http.StatusOK, "comment deleted")
}

// AdminList handles GET /admin/comments.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{}

	if v := q.Get("article_id"); v != "" {
		if _, err := uuid.Parse(v); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid article_id")
			return
		}
		filter.ArticleID = v
	}
	if v := q.Get("status"); v != "" {
		status := domain.CommentStatus(v)
		filter.Status = &status
	}
	page := httputil.ParsePage(r, DefaultPerPage, MaxPerPage)
	filter.Limit, filter.Offset = page.PerPage, page.Offset()

	list, total, err := h.service.AdminList(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, listResponse(list, total, page))
}

// SetStatus handles PUT /admin/comments/{id}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	comment, err := h.service.SetStatus(r.Context(), id, domain.CommentStatus(req.Status))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, comment)
}

func (h *Handler) decodeComment(w http.ResponseWriter, r *http.Request) (CommentRequest, bool) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return req, false
	}
	return req, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrCommentNotFound), errors.Is(err, ErrArticleNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		httputil.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrInvalidStatus):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		ctxlog.FromContext(r.Context()).Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func listResponse(list []domain.Comment, total int, page httputil.Page) CommentListResponse {
	return CommentListResponse{
		Comments:   list,
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      total,
		TotalPages: httputil.TotalPages(total, page.PerPage),
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
