package articles

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/newsroom/internal/ads"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAds attaches one ad of the requested placement.
func stubAds(placement domain.AdType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			injected := &ads.Injected{
				Placement: placement,
				Ads:       []domain.Ad{{ID: "00000000-0000-0000-0000-0000000ad001", Title: string(placement), AdType: placement}},
				ShowAds:   true,
			}
			next.ServeHTTP(w, r.WithContext(ads.WithInjected(r.Context(), injected)))
		})
	}
}

func routerAs(h *Handler, principal *domain.Principal, perms domain.Permissions) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := httputil.WithPermissions(req.Context(), perms)
			if principal != nil {
				ctx = httputil.WithPrincipal(ctx, *principal)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	h.RegisterProtectedRoutes(r)
	h.RegisterAdminRoutes(r)
	return r
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NoError(t, json.Unmarshal(body.Data, v))
}

func TestHandlerListInjectsSidebarAds(t *testing.T) {
	// Arrange
	service := newTestService(newMockRepository(), nil, nil)
	seedArticle(t, service, "Morning briefing", nil)
	seedArticle(t, service, "Evening briefing", nil)
	h := NewHandler(service, stubAds)

	// Act
	rec := httptest.NewRecorder()
	routerAs(h, nil, domain.Permissions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles?per_page=1", nil))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ArticleListResponse
	decodeData(t, rec, &resp)
	assert.Len(t, resp.Articles, 1)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.Ads, 1)
	assert.Equal(t, domain.AdTypeSidebar, resp.Ads[0].AdType)
}

func TestHandlerListWithoutAdMiddleware(t *testing.T) {
	service := newTestService(newMockRepository(), nil, nil)
	seedArticle(t, service, "Plain", nil)
	h := NewHandler(service, nil)

	rec := httptest.NewRecorder()
	routerAs(h, nil, domain.Permissions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"ads"`)
}

func TestHandlerListFilters(t *testing.T) {
	h := NewHandler(newTestService(newMockRepository(), nil, nil), nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{name: "no filters", query: "", wantStatus: http.StatusOK},
		{name: "category slug", query: "?category_slug=sport", wantStatus: http.StatusOK},
		{name: "bad category id", query: "?category=sport", wantStatus: http.StatusBadRequest},
		{name: "bad author id", query: "?author_id=42", wantStatus: http.StatusBadRequest},
		{name: "bad exclusive flag", query: "?exclusive=maybe", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			routerAs(h, nil, domain.Permissions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandlerGet(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	public := seedArticle(t, service, "Open to all", nil)
	exclusive := seedArticle(t, service, "Subscribers only", func(in *CreateInput) { in.IsExclusive = true })
	h := NewHandler(service, stubAds)

	tests := []struct {
		name       string
		path       string
		perms      domain.Permissions
		wantStatus int
	}{
		{name: "public article", path: "/articles/" + public.ID, perms: domain.Permissions{}, wantStatus: http.StatusOK},
		{name: "exclusive forbidden", path: "/articles/" + exclusive.ID, perms: domain.Permissions{}, wantStatus: http.StatusForbidden},
		{name: "exclusive with plan", path: "/articles/" + exclusive.ID, perms: domain.FullPermissions(), wantStatus: http.StatusOK},
		{name: "invalid id", path: "/articles/not-a-uuid", perms: domain.Permissions{}, wantStatus: http.StatusBadRequest},
		{name: "missing", path: "/articles/00000000-0000-0000-0000-000000000999", perms: domain.Permissions{}, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			routerAs(h, nil, tt.perms).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp ArticleResponse
			decodeData(t, rec, &resp)
			require.NotNil(t, resp.ArticleDetail)
			require.Len(t, resp.Ads, 1)
			assert.Equal(t, domain.AdTypeBanner, resp.Ads[0].AdType)
		})
	}
}

func TestHandlerImpressionIssuesSessionCookie(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	article := seedArticle(t, service, "Counted once", nil)
	h := NewHandler(service, nil)
	router := routerAs(h, nil, domain.Permissions{})
	path := "/articles/" + article.ID + "/impression"

	// First request gets a fresh session cookie.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session_id", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// The cookie is reused on the next request.
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	// An explicit session id in the body wins.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"session_id":"client-session"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.views, 3)
	assert.Equal(t, cookies[0].Value, *repo.views[0].SessionID)
	assert.Equal(t, cookies[0].Value, *repo.views[1].SessionID)
	assert.Equal(t, "client-session", *repo.views[2].SessionID)
	assert.Equal(t, 3, repo.articles[article.ID].ViewsCount)
}

func TestHandlerToggleSave(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	article := seedArticle(t, service, "Keep for later", nil)
	h := NewHandler(service, nil)

	user := &domain.Principal{ID: reader.UserID, Type: domain.PrincipalUser}

	tests := []struct {
		name       string
		perms      domain.Permissions
		wantStatus int
		wantSaved  bool
	}{
		{name: "free plan cannot save", perms: domain.Permissions{}, wantStatus: http.StatusForbidden},
		{name: "save", perms: reader.Permissions, wantStatus: http.StatusOK, wantSaved: true},
		{name: "unsave", perms: reader.Permissions, wantStatus: http.StatusOK, wantSaved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			routerAs(h, user, tt.perms).ServeHTTP(rec,
				httptest.NewRequest(http.MethodPost, "/articles/"+article.ID+"/toggle-save", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp InteractionResponse
			decodeData(t, rec, &resp)
			require.NotNil(t, resp.IsSaved)
			assert.Equal(t, tt.wantSaved, *resp.IsSaved)
		})
	}
}

func TestHandlerSavedIDs(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	article := seedArticle(t, service, "Saved one", nil)
	require.NoError(t, service.SetSaved(t.Context(), reader, article.ID, true))
	h := NewHandler(service, nil)
	user := &domain.Principal{ID: reader.UserID, Type: domain.PrincipalUser}

	rec := httptest.NewRecorder()
	routerAs(h, user, reader.Permissions).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/saved?ids=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp IDsResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, []string{article.ID}, resp.IDs)
}

func TestHandlerAdminToggleLikeForbidden(t *testing.T) {
	service := newTestService(newMockRepository(), nil, nil)
	article := seedArticle(t, service, "Admins do not like", nil)
	h := NewHandler(service, nil)
	adminPrincipal := &domain.Principal{ID: "00000000-0000-0000-0000-00000000c001", Type: domain.PrincipalAdmin}

	rec := httptest.NewRecorder()
	routerAs(h, adminPrincipal, domain.FullPermissions()).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/articles/"+article.ID+"/toggle-like", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerSearch(t *testing.T) {
	service := newTestService(newMockRepository(), nil, nil)
	seedArticle(t, service, "Bridge reopens", nil)
	h := NewHandler(service, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantTotal  int
	}{
		{name: "missing query", query: "", wantStatus: http.StatusBadRequest},
		{name: "bad date", query: "?q=bridge&date_from=yesterday", wantStatus: http.StatusBadRequest},
		{name: "match", query: "?q=bridge", wantStatus: http.StatusOK, wantTotal: 1},
		{name: "too short", query: "?q=br", wantStatus: http.StatusOK, wantTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			routerAs(h, nil, domain.Permissions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/search"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp SearchResponse
			decodeData(t, rec, &resp)
			assert.Equal(t, tt.wantTotal, resp.Total)
		})
	}
}

func TestHandlerAdminCreate(t *testing.T) {
	repo := newMockRepository()
	notifier := newMockNotifier()
	h := NewHandler(newTestService(repo, nil, notifier), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "published with fan-out",
			body:       `{"title":"Flood alert","content":"<p>Rivers rising</p><script>x()</script>","author_id":"` + testAuthorID + `","status":"published","is_breaking":true}`,
			wantStatus: http.StatusCreated,
		},
		{name: "missing author", body: `{"title":"No author","content":"text"}`, wantStatus: http.StatusBadRequest},
		{name: "bad status", body: `{"title":"t","content":"c","author_id":"` + testAuthorID + `","status":"live"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown author", body: `{"title":"t","content":"c","author_id":"00000000-0000-0000-0000-00000000dead"}`, wantStatus: http.StatusNotFound},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			routerAs(h, nil, domain.FullPermissions()).ServeHTTP(rec,
				httptest.NewRequest(http.MethodPost, "/admin/articles", strings.NewReader(tt.body)))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusCreated {
				return
			}
			var resp MutationResult
			decodeData(t, rec, &resp)
			assert.NotContains(t, resp.Article.Content, "<script>")
			require.NotNil(t, resp.Dispatch)
			assert.Equal(t, 2, resp.Dispatch.Created())
			waitDelivered(t, notifier)
		})
	}
}

func TestHandlerAdminList(t *testing.T) {
	service := newTestService(newMockRepository(), nil, nil)
	seedArticle(t, service, "Live", nil)
	seedArticle(t, service, "Pending", func(in *CreateInput) { in.Status = draft })
	h := NewHandler(service, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantTotal  int
	}{
		{name: "all statuses", query: "", wantStatus: http.StatusOK, wantTotal: 2},
		{name: "drafts", query: "?status=draft", wantStatus: http.StatusOK, wantTotal: 1},
		{name: "invalid status", query: "?status=deleted", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			routerAs(h, nil, domain.FullPermissions()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/articles"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp ArticleListResponse
			decodeData(t, rec, &resp)
			assert.Equal(t, tt.wantTotal, resp.Total)
		})
	}
}
