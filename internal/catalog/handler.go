package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Pagination constants.
const (
	DefaultAuthorsPerPage = 20
	MaxAuthorsPerPage     = 100
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/slug/{slug}", h.GetCategoryBySlug)
	r.Get("/authors/{id}", h.GetAuthor)
}

// RegisterProtectedRoutes registers routes for authenticated readers.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/authors/followed", h.ListFollowedAuthors)
	r.Post("/authors/{id}/toggle-follow", h.ToggleFollow)
}

// RegisterAdminRoutes registers admin routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/categories", func(r chi.Router) {
		r.Get("/", h.AdminListCategories)
		r.Post("/", h.CreateCategory)
		r.Get("/{id}", h.GetCategory)
		r.Put("/{id}", h.UpdateCategory)
		r.Delete("/{id}", h.DeleteCategory)
	})

	r.Route("/admin/authors", func(r chi.Router) {
		r.Get("/", h.ListAuthors)
		r.Get("/search", h.ListAuthors)
		r.Post("/", h.CreateAuthor)
		r.Get("/{id}", h.GetAuthorDetail)
		r.Get("/{id}/statistics", h.GetAuthorStatistics)
		r.Put("/{id}", h.UpdateAuthor)
		r.Delete("/{id}", h.DeleteAuthor)
	})
}

// CategoryRequest represents the request body for creating or updating a category.
type CategoryRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=100"`
	Slug         string `json:"slug" validate:"omitempty,max=100"`
	Description  string `json:"description" validate:"max=1000"`
	IsSearchable *bool  `json:"is_searchable"`
}

// ToInput converts the request to service input. Categories are searchable
// unless stated otherwise.
func (r *CategoryRequest) ToInput() CategoryInput {
	searchable := true
	if r.IsSearchable != nil {
		searchable = *r.IsSearchable
	}
	return CategoryInput{
		Name:         r.Name,
		Slug:         r.Slug,
		Description:  r.Description,
		IsSearchable: searchable,
	}
}

// AuthorRequest represents the request body for creating or updating an author.
type AuthorRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
	Bio       string `json:"bio" validate:"max=5000"`
}

// AuthorResponse is a public author view.
type AuthorResponse struct {
	*domain.Author
	IsFollowing bool `json:"is_following"`
}

// AuthorListResponse is a page of authors.
type AuthorListResponse struct {
	Authors    []domain.Author `json:"authors"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalPages int             `json:"total_pages"`
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context(), CategoryFilter{
		SearchableOnly: r.URL.Query().Get("searchable") == "true",
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, categories)
}

// AdminListCategories handles GET /admin/categories.
func (h *Handler) AdminListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context(), CategoryFilter{})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, categories)
}

// GetCategoryBySlug handles GET /categories/slug/{slug}.
func (h *Handler) GetCategoryBySlug(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.GetCategoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, category)
}

// GetCategory handles GET /admin/categories/{id}.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	category, err := h.service.GetCategoryByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, category)
}

// CreateCategory handles POST /admin/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req.ToInput())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusCreated, category)
}

// UpdateCategory handles PUT /admin/categories/{id}.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), id, req.ToInput())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /admin/categories/{id}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAuthor handles GET /authors/{id}.
func (h *Handler) GetAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	author, err := h.service.GetAuthor(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := AuthorResponse{Author: author}
	if userID := httputil.GetUserID(r.Context()); userID != "" {
		resp.IsFollowing, err = h.service.IsFollowing(r.Context(), userID, id)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	}
	httputil.Success(w, http.StatusOK, resp)
}

// ListFollowedAuthors handles GET /authors/followed.
func (h *Handler) ListFollowedAuthors(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusForbidden, "reader account required")
		return
	}

	authors, err := h.service.ListFollowedAuthors(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, authors)
}

// ToggleFollow handles POST /authors/{id}/toggle-follow.
func (h *Handler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusForbidden, "reader account required")
		return
	}

	following, err := h.service.ToggleFollow(r.Context(), userID, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]bool{"is_following": following})
}

// ListAuthors handles GET /admin/authors and GET /admin/authors/search.
func (h *Handler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r, DefaultAuthorsPerPage, MaxAuthorsPerPage)
	search := r.URL.Query().Get("q")
	if search == "" {
		search = r.URL.Query().Get("search")
	}

	authors, total, err := h.service.ListAuthors(r.Context(), AuthorFilter{
		Search: strings.TrimSpace(search),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, AuthorListResponse{
		Authors:    authors,
		Total:      total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: httputil.TotalPages(total, page.PerPage),
	})
}

// GetAuthorDetail handles GET /admin/authors/{id}.
func (h *Handler) GetAuthorDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetAuthorDetail(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, detail)
}

// GetAuthorStatistics handles GET /admin/authors/{id}/statistics.
func (h *Handler) GetAuthorStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetAuthorStatistics(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, stats)
}

// CreateAuthor handles POST /admin/authors.
func (h *Handler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req AuthorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	author, err := h.service.CreateAuthor(r.Context(), AuthorInput(req))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusCreated, author)
}

// UpdateAuthor handles PUT /admin/authors/{id}.
func (h *Handler) UpdateAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req AuthorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	author, err := h.service.UpdateAuthor(r.Context(), id, AuthorInput(req))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, author)
}

// DeleteAuthor handles DELETE /admin/authors/{id}.
func (h *Handler) DeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAuthor(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrCategoryNotFound), errors.Is(err, ErrAuthorNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlugExists):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrAuthorHasArticles):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidSlug), errors.Is(err, ErrEmptyCategoryName), errors.Is(err, ErrInvalidAuthorName):
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
