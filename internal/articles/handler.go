package articles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/newsroom/internal/ads"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultPerPage     = 10
	maxPerPage         = 100
	adminPerPage       = 20
	recommendedPerPage = 5

	sessionCookie    = "session_id"
	sessionCookieAge = 365 * 24 * time.Hour
)

// AdMiddleware attaches ads of a placement to the request context.
type AdMiddleware func(placement domain.AdType) func(http.Handler) http.Handler

// Handler handles article HTTP requests.
type Handler struct {
	service   *Service
	validator *validator.Validate
	ads       AdMiddleware
}

// NewHandler creates a new articles handler. adMiddleware may be nil.
func NewHandler(service *Service, adMiddleware AdMiddleware) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
		ads:       adMiddleware,
	}
}

func (h *Handler) withAds(placement domain.AdType) func(http.Handler) http.Handler {
	if h.ads == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.ads(placement)
}

// RegisterRoutes registers public routes. Requests may be anonymous.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.withAds(domain.AdTypeSidebar)).Get("/articles", h.List)
	r.Get("/articles/search", h.Search)
	r.With(h.withAds(domain.AdTypeInline)).Get("/articles/recommended", h.Recommended)
	r.With(h.withAds(domain.AdTypeBanner)).Get("/articles/{id}", h.Get)
	r.Post("/articles/{id}/impression", h.Impression)
	r.Get("/authors/{id}/articles", h.AuthorArticles)
}

// RegisterProtectedRoutes registers routes that require an authenticated reader.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httputil.RequirePermission(domain.PermissionSaveArticle))
		r.Post("/articles/{id}/save", h.Save)
		r.Post("/articles/{id}/unsave", h.Unsave)
		r.Post("/articles/{id}/toggle-save", h.ToggleSave)
	})
	r.Post("/articles/{id}/toggle-like", h.ToggleLike)
	r.Get("/articles/saved", h.Saved)
	r.Get("/articles/liked", h.Liked)
}

// RegisterAdminRoutes registers admin routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/articles", func(r chi.Router) {
		r.Get("/", h.AdminList)
		r.Post("/", h.Create)
		r.Get("/{id}", h.AdminGet)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/status", h.UpdateStatus)
	})
}

// CreateArticleRequest represents the body of article create requests.
type CreateArticleRequest struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Content     string   `json:"content" validate:"required"`
	AuthorID    string   `json:"author_id" validate:"required,uuid"`
	CategoryID  *string  `json:"category_id" validate:"omitempty,uuid"`
	Status      string   `json:"status" validate:"omitempty,oneof=draft published archived"`
	IsExclusive bool     `json:"is_exclusive"`
	IsBreaking  bool     `json:"is_breaking"`
	Keywords    []string `json:"keywords" validate:"max=20,dive,max=50"`
}

// UpdateArticleRequest represents the body of article update requests.
// Omitted fields are left unchanged; an empty category_id clears the category.
type UpdateArticleRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=255"`
	Content     *string  `json:"content"`
	AuthorID    *string  `json:"author_id" validate:"omitempty,uuid"`
	CategoryID  *string  `json:"category_id" validate:"omitempty,uuid"`
	Status      *string  `json:"status" validate:"omitempty,oneof=draft published archived"`
	IsExclusive *bool    `json:"is_exclusive"`
	IsBreaking  *bool    `json:"is_breaking"`
	Keywords    []string `json:"keywords" validate:"max=20,dive,max=50"`
}

func (req UpdateArticleRequest) toInput() UpdateInput {
	input := UpdateInput{
		Title:       req.Title,
		Content:     req.Content,
		AuthorID:    req.AuthorID,
		CategoryID:  req.CategoryID,
		IsExclusive: req.IsExclusive,
		IsBreaking:  req.IsBreaking,
		Keywords:    req.Keywords,
	}
	if req.Status != nil {
		status := domain.ArticleStatus(*req.Status)
		input.Status = &status
	}
	return input
}

// StatusRequest represents the body of status change requests.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft published archived"`
}

// ImpressionRequest represents the optional body of impression requests.
type ImpressionRequest struct {
	SessionID string `json:"session_id" validate:"max=128"`
}

// ArticleListResponse is a page of articles.
type ArticleListResponse struct {
	Articles   []domain.Article `json:"articles"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
	Ads        []domain.Ad      `json:"ads,omitempty"`
}

// SearchResponse is a page of search results.
type SearchResponse struct {
	ArticleListResponse
	Query    string `json:"query"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// RecommendedResponse lists recommended articles.
type RecommendedResponse struct {
	Articles []domain.Article `json:"articles"`
	Ads      []domain.Ad      `json:"ads"`
}

// ArticleResponse is an article with reader flags and injected ads.
type ArticleResponse struct {
	*ArticleDetail
	Ads []domain.Ad `json:"ads"`
}

// InteractionResponse reports the state of a saved or liked mark.
type InteractionResponse struct {
	ArticleID string `json:"article_id"`
	IsSaved   *bool  `json:"is_saved,omitempty"`
	IsLiked   *bool  `json:"is_liked,omitempty"`
}

// IDsResponse lists article IDs.
type IDsResponse struct {
	IDs []string `json:"ids"`
}

// List handles GET /articles.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	page := httputil.ParsePage(r, defaultPerPage, maxPerPage)
	filter.Limit, filter.Offset = page.PerPage, page.Offset()

	list, total, err := h.service.List(r.Context(), viewerFrom(r.Context()), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, listResponse(r.Context(), list, total, page))
}

// AuthorArticles handles GET /authors/{id}/articles.
func (h *Handler) AuthorArticles(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	page := httputil.ParsePage(r, defaultPerPage, maxPerPage)

	list, total, err := h.service.ListByAuthor(r.Context(), viewerFrom(r.Context()), id, page.PerPage, page.Offset())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, listResponse(r.Context(), list, total, page))
}

// Search handles GET /articles/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := httputil.ParsePage(r, defaultPerPage, maxPerPage)

	list, total, err := h.service.Search(r.Context(), viewerFrom(r.Context()), SearchInput{
		Query:    q.Get("q"),
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
		Limit:    page.PerPage,
		Offset:   page.Offset(),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, SearchResponse{
		ArticleListResponse: *listResponse(r.Context(), list, total, page),
		Query:               q.Get("q"),
		DateFrom:            q.Get("date_from"),
		DateTo:              q.Get("date_to"),
	})
}

// Recommended handles GET /articles/recommended.
func (h *Handler) Recommended(w http.ResponseWriter, r *http.Request) {
	excludeID := r.URL.Query().Get("article_id")
	if excludeID != "" {
		if _, err := uuid.Parse(excludeID); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid article_id")
			return
		}
	}
	page := httputil.ParsePage(r, recommendedPerPage, maxPerPage)

	list, err := h.service.Recommended(r.Context(), viewerFrom(r.Context()), excludeID, page.PerPage)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, RecommendedResponse{Articles: list, Ads: injectedAds(r.Context())})
}

// Get handles GET /articles/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), viewerFrom(r.Context()), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, ArticleResponse{ArticleDetail: detail, Ads: injectedAds(r.Context())})
}

// Impression handles POST /articles/{id}/impression. Anonymous readers are
// identified by a session cookie issued on their first impression.
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

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = ensureSession(w, r)
	}

	view := &domain.ArticleView{ArticleID: id, SessionID: &sessionID}
	if userID := httputil.GetUserID(r.Context()); userID != "" {
		view.UserID = &userID
	}
	if ip := httputil.ClientIP(r); ip != "" {
		view.IPAddress = &ip
	}

	if err := h.service.RecordImpression(r.Context(), view); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Message(w, http.StatusOK, "impression recorded")
}

func ensureSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Save handles POST /articles/{id}/save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	h.setSaved(w, r, true)
}

// Unsave handles POST /articles/{id}/unsave.
func (h *Handler) Unsave(w http.ResponseWriter, r *http.Request) {
	h.setSaved(w, r, false)
}

func (h *Handler) setSaved(w http.ResponseWriter, r *http.Request, saved bool) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.SetSaved(r.Context(), viewerFrom(r.Context()), id, saved); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, InteractionResponse{ArticleID: id, IsSaved: &saved})
}

// ToggleSave handles POST /articles/{id}/toggle-save.
func (h *Handler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	saved, err := h.service.Toggle(r.Context(), viewerFrom(r.Context()), id, domain.InteractionSaved)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, InteractionResponse{ArticleID: id, IsSaved: &saved})
}

// ToggleLike handles POST /articles/{id}/toggle-like.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	liked, err := h.service.Toggle(r.Context(), viewerFrom(r.Context()), id, domain.InteractionLiked)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, InteractionResponse{ArticleID: id, IsLiked: &liked})
}

// Saved handles GET /articles/saved. With ids=true only article IDs are returned.
func (h *Handler) Saved(w http.ResponseWriter, r *http.Request) {
	if ids, _ := strconv.ParseBool(r.URL.Query().Get("ids")); ids {
		list, err := h.service.ListInteractedIDs(r.Context(), viewerFrom(r.Context()), domain.InteractionSaved)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		httputil.Success(w, http.StatusOK, IDsResponse{IDs: list})
		return
	}
	h.interacted(w, r, domain.InteractionSaved)
}

// Liked handles GET /articles/liked.
func (h *Handler) Liked(w http.ResponseWriter, r *http.Request) {
	h.interacted(w, r, domain.InteractionLiked)
}

func (h *Handler) interacted(w http.ResponseWriter, r *http.Request, t domain.InteractionType) {
	page := httputil.ParsePage(r, defaultPerPage, maxPerPage)

	list, total, err := h.service.ListInteracted(r.Context(), viewerFrom(r.Context()), t, page.PerPage, page.Offset())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, listResponse(r.Context(), list, total, page))
}

// AdminList handles GET /admin/articles.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.ArticleStatus(v)
		if !status.IsValid() {
			httputil.Error(w, http.StatusBadRequest, ErrInvalidStatus.Error())
			return
		}
		filter.Status = &status
	}
	page := httputil.ParsePage(r, adminPerPage, maxPerPage)
	filter.Limit, filter.Offset = page.PerPage, page.Offset()

	list, total, err := h.service.AdminList(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, listResponse(r.Context(), list, total, page))
}

// AdminGet handles GET /admin/articles/{id}.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	article, err := h.service.AdminGet(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, article)
}

// Create handles POST /admin/articles.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.Create(r.Context(), CreateInput{
		Title:       req.Title,
		Content:     req.Content,
		AuthorID:    req.AuthorID,
		CategoryID:  req.CategoryID,
		Status:      domain.ArticleStatus(req.Status),
		IsExclusive: req.IsExclusive,
		IsBreaking:  req.IsBreaking,
		Keywords:    req.Keywords,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusCreated, result)
}

// Update handles PUT /admin/articles/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req UpdateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, result)
}

// UpdateStatus handles PUT /admin/articles/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.service.UpdateStatus(r.Context(), id, domain.ArticleStatus(req.Status))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, result)
}

// Delete handles DELETE /admin/articles/{id}.
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

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrArticleNotFound),
		errors.Is(err, ErrAuthorNotFound),
		errors.Is(err, ErrCategoryNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExclusiveContent), errors.Is(err, ErrReaderRequired):
		httputil.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrQueryRequired),
		errors.Is(err, ErrInvalidDate):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		ctxlog.FromContext(r.Context()).Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// viewerFrom builds the viewer from the principal and permissions in ctx.
func viewerFrom(ctx context.Context) Viewer {
	viewer := Viewer{Permissions: httputil.GetPermissions(ctx)}
	if p, ok := httputil.GetPrincipal(ctx); ok {
		if p.IsAdmin() {
			viewer.IsAdmin = true
		} else {
			viewer.UserID = p.ID
		}
	}
	return viewer
}

func injectedAds(ctx context.Context) []domain.Ad {
	if injected := ads.FromContext(ctx); injected != nil {
		return injected.Ads
	}
	return []domain.Ad{}
}

func listResponse(ctx context.Context, list []domain.Article, total int, page httputil.Page) *ArticleListResponse {
	resp := &ArticleListResponse{
		Articles:   list,
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      total,
		TotalPages: httputil.TotalPages(total, page.PerPage),
	}
	if injected := ads.FromContext(ctx); injected != nil {
		resp.Ads = injected.Ads
	}
	return resp
}

// parseFilter reads the category, category_slug, author_id and exclusive
// query parameters.
func parseFilter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	filter := Filter{CategorySlug: q.Get("category_slug")}

	for param, dst := range map[string]*string{"category": &filter.CategoryID, "author_id": &filter.AuthorID} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		if _, err := uuid.Parse(v); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid "+param)
			return Filter{}, false
		}
		*dst = v
	}

	if v := q.Get("exclusive"); v != "" {
		exclusive, err := strconv.ParseBool(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "exclusive must be true or false")
			return Filter{}, false
		}
		filter.Exclusive = &exclusive
	}
	return filter, true
}

func parseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}
