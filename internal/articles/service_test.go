package articles

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx records commit and rollback calls. Nested Begin returns a savepoint.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	savepoints []*fakeTx
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	sp := &fakeTx{}
	t.savepoints = append(t.savepoints, sp)
	return sp, nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type interactionKey struct {
	userID    string
	articleID string
	t         domain.InteractionType
}

// mockRepository implements Repository for testing.
type mockRepository struct {
	articles     map[string]*domain.Article
	categories   map[string]*domain.ArticleCategory
	authors      map[string]bool
	interactions map[interactionKey]bool
	views        []*domain.ArticleView
	txs          []*fakeTx
	lastSearch   *SearchFilter
	nextID       int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		articles:     make(map[string]*domain.Article),
		categories:   make(map[string]*domain.ArticleCategory),
		authors:      map[string]bool{testAuthorID: true},
		interactions: make(map[interactionKey]bool),
	}
}

const testAuthorID = "00000000-0000-0000-0000-00000000a001"

func (m *mockRepository) id() string {
	m.nextID++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", m.nextID)
}

func (m *mockRepository) store(article *domain.Article) error {
	if !m.authors[article.AuthorID] {
		return ErrAuthorNotFound
	}
	article.Category = nil
	if article.CategoryID != nil {
		c, ok := m.categories[*article.CategoryID]
		if !ok {
			return ErrCategoryNotFound
		}
		article.Category = c
	}
	cp := *article
	m.articles[article.ID] = &cp
	return nil
}

func (m *mockRepository) Create(_ context.Context, article *domain.Article) error {
	article.ID = m.id()
	article.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, m.nextID, time.UTC)
	return m.store(article)
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*domain.Article, error) {
	if a, ok := m.articles[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, ErrArticleNotFound
}

func (m *mockRepository) matches(a *domain.Article, filter Filter) bool {
	if filter.Status != nil && a.Status != *filter.Status {
		return false
	}
	if !filter.IncludeExclusive && a.IsExclusive {
		return false
	}
	if filter.Exclusive != nil && a.IsExclusive != *filter.Exclusive {
		return false
	}
	if filter.CategoryID != "" && (a.CategoryID == nil || *a.CategoryID != filter.CategoryID) {
		return false
	}
	if filter.CategorySlug != "" && (a.Category == nil || a.Category.Slug != filter.CategorySlug) {
		return false
	}
	if filter.AuthorID != "" && a.AuthorID != filter.AuthorID {
		return false
	}
	return true
}

func newest(list []domain.Article) {
	key := func(a domain.Article) time.Time {
		if a.PublishedAt != nil {
			return *a.PublishedAt
		}
		return a.CreatedAt
	}
	sort.Slice(list, func(i, j int) bool {
		if !key(list[i]).Equal(key(list[j])) {
			return key(list[i]).After(key(list[j]))
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func page(list []domain.Article, limit, offset int) []domain.Article {
	if offset >= len(list) {
		return []domain.Article{}
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

func (m *mockRepository) List(_ context.Context, filter Filter) ([]domain.Article, int, error) {
	var list []domain.Article
	for _, a := range m.articles {
		if m.matches(a, filter) {
			list = append(list, *a)
		}
	}
	newest(list)
	return page(list, filter.Limit, filter.Offset), len(list), nil
}

func (m *mockRepository) Search(_ context.Context, filter SearchFilter) ([]domain.Article, int, error) {
	m.lastSearch = &filter
	var list []domain.Article
	q := strings.ToLower(filter.Query)
	for _, a := range m.articles {
		if !a.IsPublished() || (a.IsExclusive && !filter.IncludeExclusive) {
			continue
		}
		if strings.Contains(strings.ToLower(a.Title+" "+a.Content+" "+strings.Join(a.Keywords, " ")), q) {
			list = append(list, *a)
		}
	}
	newest(list)
	return page(list, filter.Limit, filter.Offset), len(list), nil
}

func (m *mockRepository) Recommended(_ context.Context, filter RecommendFilter) ([]domain.Article, error) {
	slugs := make(map[string]bool)
	for _, s := range filter.CategorySlugs {
		slugs[s] = true
	}
	var list []domain.Article
	for _, a := range m.articles {
		if !a.IsPublished() || a.ID == filter.ExcludeID || (a.IsExclusive && !filter.IncludeExclusive) {
			continue
		}
		if a.Category != nil && slugs[a.Category.Slug] {
			list = append(list, *a)
		}
	}
	newest(list)
	return page(list, filter.Limit, 0), nil
}

func (m *mockRepository) Update(_ context.Context, article *domain.Article) error {
	if _, ok := m.articles[article.ID]; !ok {
		return ErrArticleNotFound
	}
	return m.store(article)
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	if _, ok := m.articles[id]; !ok {
		return ErrArticleNotFound
	}
	delete(m.articles, id)
	return nil
}

func (m *mockRepository) AuthorExists(_ context.Context, id string) (bool, error) {
	return m.authors[id], nil
}

func (m *mockRepository) SetInteraction(_ context.Context, userID, articleID string, t domain.InteractionType, active bool) error {
	key := interactionKey{userID, articleID, t}
	if active {
		m.interactions[key] = true
	} else {
		delete(m.interactions, key)
	}
	return nil
}

func (m *mockRepository) ToggleInteraction(_ context.Context, userID, articleID string, t domain.InteractionType) (bool, error) {
	key := interactionKey{userID, articleID, t}
	if m.interactions[key] {
		delete(m.interactions, key)
		return false, nil
	}
	m.interactions[key] = true
	return true, nil
}

func (m *mockRepository) HasInteraction(_ context.Context, userID, articleID string, t domain.InteractionType) (bool, error) {
	return m.interactions[interactionKey{userID, articleID, t}], nil
}

func (m *mockRepository) CountInteractions(_ context.Context, articleID string, t domain.InteractionType) (int, error) {
	n := 0
	for k := range m.interactions {
		if k.articleID == articleID && k.t == t {
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) ListInteracted(_ context.Context, filter InteractionFilter) ([]domain.Article, int, error) {
	var list []domain.Article
	for k := range m.interactions {
		if k.userID != filter.UserID || k.t != filter.Type {
			continue
		}
		if a, ok := m.articles[k.articleID]; ok && (filter.IncludeExclusive || !a.IsExclusive) {
			list = append(list, *a)
		}
	}
	newest(list)
	return page(list, filter.Limit, filter.Offset), len(list), nil
}

func (m *mockRepository) ListInteractedIDs(_ context.Context, userID string, t domain.InteractionType) ([]string, error) {
	ids := []string{}
	for k := range m.interactions {
		if k.userID == userID && k.t == t {
			ids = append(ids, k.articleID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockRepository) RecordView(_ context.Context, view *domain.ArticleView) error {
	a, ok := m.articles[view.ArticleID]
	if !ok {
		return ErrArticleNotFound
	}
	a.ViewsCount++
	m.views = append(m.views, view)
	return nil
}

func (m *mockRepository) BeginTx(context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	m.txs = append(m.txs, tx)
	return tx, nil
}

func (m *mockRepository) CreateTx(ctx context.Context, _ pgx.Tx, article *domain.Article) error {
	return m.Create(ctx, article)
}

func (m *mockRepository) GetByIDForUpdateTx(ctx context.Context, _ pgx.Tx, id string) (*domain.Article, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepository) UpdateTx(ctx context.Context, _ pgx.Tx, article *domain.Article) error {
	return m.Update(ctx, article)
}

// mockNotifier records fan-out calls.
type mockNotifier struct {
	calls     []string
	err       error
	report    *domain.PublishReport
	delivered chan *domain.PublishReport
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{delivered: make(chan *domain.PublishReport, 4)}
}

func (n *mockNotifier) OnArticlePublished(_ context.Context, tx pgx.Tx, article *domain.Article) (*domain.PublishReport, error) {
	n.calls = append(n.calls, article.ID)
	if _, ok := tx.(*fakeTx); !ok {
		return nil, fmt.Errorf("unexpected tx type %T", tx)
	}
	if n.err != nil {
		return nil, n.err
	}
	if n.report != nil {
		return n.report, nil
	}
	return &domain.PublishReport{
		ArticleID: article.ID,
		Handlers:  []domain.PublishHandlerResult{{Handler: "breaking_news", Created: 2}},
		Deliveries: []domain.PushDelivery{{
			Handler: "breaking_news",
			UserIDs: []string{"u1", "u2"},
			Payload: domain.PushPayload{Title: article.Title},
		}},
	}, nil
}

func (n *mockNotifier) Deliver(_ context.Context, report *domain.PublishReport) {
	n.delivered <- report
}

// mockUsers implements UserReader.
type mockUsers map[string]*domain.User

func (m mockUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s not found", id)
}

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func newTestService(repo *mockRepository, users mockUsers, notifier PublishNotifier) *Service {
	s := NewService(repo, users, notifier)
	s.now = func() time.Time { return fixedNow }
	return s
}

var (
	reader   = Viewer{UserID: "00000000-0000-0000-0000-00000000b001", Permissions: domain.Permissions{domain.PermissionSaveArticle: true}}
	premium  = Viewer{UserID: "00000000-0000-0000-0000-00000000b002", Permissions: domain.FullPermissions()}
	admin    = Viewer{IsAdmin: true, Permissions: domain.FullPermissions()}
	visitor  = Viewer{Permissions: domain.Permissions{}}
	draft    = domain.ArticleStatusDraft
	archived = domain.ArticleStatusArchived
)

func seedArticle(t *testing.T, s *Service, title string, mutate func(*CreateInput)) *domain.Article {
	t.Helper()
	input := CreateInput{
		Title:    title,
		Content:  "<p>" + title + " body</p>",
		AuthorID: testAuthorID,
		Status:   domain.ArticleStatusPublished,
	}
	if mutate != nil {
		mutate(&input)
	}
	result, err := s.Create(context.Background(), input)
	require.NoError(t, err)
	return result.Article
}

func waitDelivered(t *testing.T, n *mockNotifier) *domain.PublishReport {
	t.Helper()
	select {
	case report := <-n.delivered:
		return report
	case <-time.After(time.Second):
		t.Fatal("push delivery was not started")
		return nil
	}
}

func TestService_CreateDraftSkipsFanOut(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	notifier := newMockNotifier()
	service := newTestService(repo, nil, notifier)

	// Act
	result, err := service.Create(context.Background(), CreateInput{
		Title: "Budget hearing", Content: "Draft text", AuthorID: testAuthorID,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.ArticleStatusDraft, result.Article.Status)
	assert.Nil(t, result.Article.PublishedAt)
	assert.Nil(t, result.Dispatch)
	assert.Empty(t, notifier.calls)
	require.Len(t, repo.txs, 1)
	assert.True(t, repo.txs[0].committed)
}

func TestService_CreatePublishedRunsFanOutInSavepoint(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	notifier := newMockNotifier()
	service := newTestService(repo, nil, notifier)

	// Act
	result, err := service.Create(context.Background(), CreateInput{
		Title: "Storm warning", Content: "Take shelter", AuthorID: testAuthorID,
		Status: domain.ArticleStatusPublished, IsBreaking: true,
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result.Article.PublishedAt)
	assert.Equal(t, fixedNow, *result.Article.PublishedAt)
	require.NotNil(t, result.Dispatch)
	assert.Equal(t, 2, result.Dispatch.Created())
	assert.Equal(t, []string{result.Article.ID}, notifier.calls)

	tx := repo.txs[0]
	assert.True(t, tx.committed)
	require.Len(t, tx.savepoints, 1)
	assert.True(t, tx.savepoints[0].committed)

	delivered := waitDelivered(t, notifier)
	assert.Equal(t, result.Article.ID, delivered.ArticleID)
}

func TestService_FanOutFailureKeepsArticle(t *testing.T) {
	repo := newMockRepository()
	notifier := newMockNotifier()
	notifier.err = fmt.Errorf("notifications table locked")
	service := newTestService(repo, nil, notifier)

	result, err := service.Create(context.Background(), CreateInput{
		Title: "Election night", Content: "Results", AuthorID: testAuthorID, Status: domain.ArticleStatusPublished,
	})

	require.NoError(t, err)
	assert.Nil(t, result.Dispatch)
	assert.Contains(t, repo.articles, result.Article.ID)

	tx := repo.txs[0]
	assert.True(t, tx.committed)
	require.Len(t, tx.savepoints, 1)
	assert.True(t, tx.savepoints[0].rolledBack)
	assert.Empty(t, notifier.delivered)
}

func TestService_UpdateRunsFanOutOnlyOnTransitionToPublished(t *testing.T) {
	repo := newMockRepository()
	notifier := newMockNotifier()
	notifier.report = &domain.PublishReport{Handlers: []domain.PublishHandlerResult{{Handler: "breaking_news"}}}
	service := newTestService(repo, nil, notifier)

	article := seedArticle(t, service, "Quiet draft", func(in *CreateInput) { in.Status = draft })
	require.Empty(t, notifier.calls)

	published := domain.ArticleStatusPublished
	newTitle := "Edited after publishing"

	tests := []struct {
		name      string
		input     UpdateInput
		wantCalls int
	}{
		{name: "draft to published", input: UpdateInput{Status: &published}, wantCalls: 1},
		{name: "edit published", input: UpdateInput{Title: &newTitle}, wantCalls: 1},
		{name: "republish published", input: UpdateInput{Status: &published}, wantCalls: 1},
		{name: "archive", input: UpdateInput{Status: &archived}, wantCalls: 1},
		{name: "archived to published", input: UpdateInput{Status: &published}, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Update(context.Background(), article.ID, tt.input)
			require.NoError(t, err)
			assert.Len(t, notifier.calls, tt.wantCalls)
		})
	}

	stored := repo.articles[article.ID]
	assert.Equal(t, newTitle, stored.Title)
	require.NotNil(t, stored.PublishedAt)
}

func TestService_UpdateValidation(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	article := seedArticle(t, service, "Validated", nil)

	bogus := domain.ArticleStatus("scheduled")
	empty := "   "
	unknownAuthor := "00000000-0000-0000-0000-00000000dead"
	unknownCategory := "00000000-0000-0000-0000-00000000beef"

	tests := []struct {
		name    string
		id      string
		input   UpdateInput
		wantErr error
	}{
		{name: "invalid status", id: article.ID, input: UpdateInput{Status: &bogus}, wantErr: ErrInvalidStatus},
		{name: "empty title", id: article.ID, input: UpdateInput{Title: &empty}, wantErr: ErrEmptyContent},
		{name: "unknown author", id: article.ID, input: UpdateInput{AuthorID: &unknownAuthor}, wantErr: ErrAuthorNotFound},
		{name: "unknown category", id: article.ID, input: UpdateInput{CategoryID: &unknownCategory}, wantErr: ErrCategoryNotFound},
		{name: "unknown article", id: "00000000-0000-0000-0000-000000000999", input: UpdateInput{}, wantErr: ErrArticleNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Update(context.Background(), tt.id, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	for _, tx := range repo.txs[1:] {
		assert.False(t, tx.committed)
		assert.True(t, tx.rolledBack)
	}
}

func TestService_UpdateClearsCategory(t *testing.T) {
	repo := newMockRepository()
	repo.categories["c1"] = &domain.ArticleCategory{ID: "c1", Name: "Sport", Slug: "sport"}
	service := newTestService(repo, nil, nil)
	categoryID := "c1"
	article := seedArticle(t, service, "Match report", func(in *CreateInput) { in.CategoryID = &categoryID })
	require.NotNil(t, article.Category)

	empty := ""
	result, err := service.Update(context.Background(), article.ID, UpdateInput{CategoryID: &empty})

	require.NoError(t, err)
	assert.Nil(t, result.Article.CategoryID)
	assert.Nil(t, result.Article.Category)
}

func TestService_GetVisibility(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)

	public := seedArticle(t, service, "Public", nil)
	exclusive := seedArticle(t, service, "Exclusive", func(in *CreateInput) { in.IsExclusive = true })
	unpublished := seedArticle(t, service, "Unpublished", func(in *CreateInput) { in.Status = draft })

	tests := []struct {
		name    string
		viewer  Viewer
		id      string
		wantErr error
	}{
		{name: "visitor reads public", viewer: visitor, id: public.ID},
		{name: "visitor blocked from exclusive", viewer: visitor, id: exclusive.ID, wantErr: ErrExclusiveContent},
		{name: "reader without plan blocked", viewer: reader, id: exclusive.ID, wantErr: ErrExclusiveContent},
		{name: "premium reads exclusive", viewer: premium, id: exclusive.ID},
		{name: "admin reads exclusive", viewer: admin, id: exclusive.ID},
		{name: "draft hidden from readers", viewer: premium, id: unpublished.ID, wantErr: ErrArticleNotFound},
		{name: "admin sees draft", viewer: admin, id: unpublished.ID},
		{name: "missing", viewer: admin, id: "00000000-0000-0000-0000-000000000999", wantErr: ErrArticleNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, err := service.Get(context.Background(), tt.viewer, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, detail.ID)
		})
	}
}

func TestService_GetReaderFlags(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	article := seedArticle(t, service, "Flagged", nil)

	_, err := service.Toggle(context.Background(), reader, article.ID, domain.InteractionLiked)
	require.NoError(t, err)
	require.NoError(t, service.SetSaved(context.Background(), reader, article.ID, true))
	_, err = service.Toggle(context.Background(), premium, article.ID, domain.InteractionLiked)
	require.NoError(t, err)

	detail, err := service.Get(context.Background(), reader, article.ID)

	require.NoError(t, err)
	assert.True(t, detail.IsSaved)
	assert.True(t, detail.IsLiked)
	assert.Equal(t, 2, detail.LikesCount)

	anonymous, err := service.Get(context.Background(), visitor, article.ID)
	require.NoError(t, err)
	assert.False(t, anonymous.IsSaved)
	assert.Equal(t, 2, anonymous.LikesCount)
}

func TestService_ListFiltersExclusiveAndCategory(t *testing.T) {
	repo := newMockRepository()
	repo.categories["tech"] = &domain.ArticleCategory{ID: "tech", Name: "Технології", Slug: "tehnologii"}
	repo.categories["sport"] = &domain.ArticleCategory{ID: "sport", Name: "Спорт", Slug: "sport"}
	service := newTestService(repo, nil, nil)

	tech, sport := "tech", "sport"
	seedArticle(t, service, "Chips", func(in *CreateInput) { in.CategoryID = &tech })
	seedArticle(t, service, "Insider chips", func(in *CreateInput) { in.CategoryID = &tech; in.IsExclusive = true })
	seedArticle(t, service, "Derby", func(in *CreateInput) { in.CategoryID = &sport })
	seedArticle(t, service, "Unreleased", func(in *CreateInput) { in.CategoryID = &tech; in.Status = draft })

	tests := []struct {
		name      string
		viewer    Viewer
		filter    Filter
		wantTotal int
	}{
		{name: "visitor sees non-exclusive published", viewer: visitor, filter: Filter{}, wantTotal: 2},
		{name: "premium sees exclusive", viewer: premium, filter: Filter{}, wantTotal: 3},
		{name: "category slug", viewer: visitor, filter: Filter{CategorySlug: "tehnologii"}, wantTotal: 1},
		{name: "category slug premium", viewer: premium, filter: Filter{CategorySlug: "tehnologii"}, wantTotal: 2},
		{name: "only exclusive for visitor", viewer: visitor, filter: Filter{Exclusive: boolPtr(true)}, wantTotal: 0},
		{name: "status filter is ignored for readers", viewer: premium, filter: Filter{Status: &draft}, wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, total, err := service.List(context.Background(), tt.viewer, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			for _, a := range list {
				assert.True(t, a.IsPublished())
				if !tt.viewer.CanSeeExclusive() {
					assert.False(t, a.IsExclusive)
				}
			}
		})
	}
}

func boolPtr(v bool) *bool { return &v }

func TestService_ToggleSaveTwiceRestoresState(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	article := seedArticle(t, service, "Bookmark me", nil)

	for _, initial := range []bool{false, true} {
		require.NoError(t, service.SetSaved(context.Background(), reader, article.ID, initial))

		first, err := service.Toggle(context.Background(), reader, article.ID, domain.InteractionSaved)
		require.NoError(t, err)
		second, err := service.Toggle(context.Background(), reader, article.ID, domain.InteractionSaved)
		require.NoError(t, err)

		assert.Equal(t, !initial, first)
		assert.Equal(t, initial, second)
		saved, err := repo.HasInteraction(context.Background(), reader.UserID, article.ID, domain.InteractionSaved)
		require.NoError(t, err)
		assert.Equal(t, initial, saved)
	}
}

func TestService_InteractionsRequireReader(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	article := seedArticle(t, service, "Likeable", nil)
	exclusive := seedArticle(t, service, "Members only", func(in *CreateInput) { in.IsExclusive = true })

	_, err := service.Toggle(context.Background(), admin, article.ID, domain.InteractionLiked)
	assert.ErrorIs(t, err, ErrReaderRequired)

	_, err = service.Toggle(context.Background(), visitor, article.ID, domain.InteractionLiked)
	assert.ErrorIs(t, err, ErrReaderRequired)

	err = service.SetSaved(context.Background(), reader, exclusive.ID, true)
	assert.ErrorIs(t, err, ErrExclusiveContent)

	_, _, err = service.ListInteracted(context.Background(), admin, domain.InteractionSaved, 10, 0)
	assert.ErrorIs(t, err, ErrReaderRequired)
}

func TestService_SavedIDs(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	a := seedArticle(t, service, "First", nil)
	b := seedArticle(t, service, "Second", nil)

	require.NoError(t, service.SetSaved(context.Background(), reader, a.ID, true))
	require.NoError(t, service.SetSaved(context.Background(), reader, b.ID, true))
	require.NoError(t, service.SetSaved(context.Background(), reader, a.ID, true))

	ids, err := service.ListInteractedIDs(context.Background(), reader, domain.InteractionSaved)

	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids)
}

func TestService_Search(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	seedArticle(t, service, "Kyiv metro extension", func(in *CreateInput) { in.Keywords = []string{"Transport"} })
	seedArticle(t, service, "Bakery opens", nil)

	t.Run("query required", func(t *testing.T) {
		_, _, err := service.Search(context.Background(), visitor, SearchInput{Query: "  "})
		assert.ErrorIs(t, err, ErrQueryRequired)
	})

	t.Run("short query returns nothing", func(t *testing.T) {
		repo.lastSearch = nil
		list, total, err := service.Search(context.Background(), visitor, SearchInput{Query: "ky"})
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.Zero(t, total)
		assert.Nil(t, repo.lastSearch)
	})

	t.Run("matches keywords", func(t *testing.T) {
		list, total, err := service.Search(context.Background(), visitor, SearchInput{Query: "transport", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "Kyiv metro extension", list[0].Title)
	})

	t.Run("invalid date", func(t *testing.T) {
		_, _, err := service.Search(context.Background(), visitor, SearchInput{Query: "metro", DateFrom: "15/03/2026"})
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("date_to includes the whole day", func(t *testing.T) {
		_, _, err := service.Search(context.Background(), visitor, SearchInput{
			Query: "metro", DateFrom: "2026-03-01", DateTo: "2026-03-15",
		})
		require.NoError(t, err)
		require.NotNil(t, repo.lastSearch.DateFrom)
		require.NotNil(t, repo.lastSearch.DateTo)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.lastSearch.DateFrom.UTC())
		assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), repo.lastSearch.DateTo.UTC())
	})
}

func TestService_Recommended(t *testing.T) {
	repo := newMockRepository()
	repo.categories["tech"] = &domain.ArticleCategory{ID: "tech", Name: "Tech", Slug: "tehnologii"}
	users := mockUsers{
		reader.UserID:  {ID: reader.UserID, Preferences: domain.Preferences{"favorite_categories": []any{"tehnologii"}}},
		premium.UserID: {ID: premium.UserID, Preferences: domain.Preferences{}},
	}
	service := newTestService(repo, users, nil)

	tech := "tech"
	current := seedArticle(t, service, "Current tech", func(in *CreateInput) { in.CategoryID = &tech })
	other := seedArticle(t, service, "Other tech", func(in *CreateInput) { in.CategoryID = &tech })
	plain := seedArticle(t, service, "Plain news", nil)

	t.Run("favorite categories exclude current article", func(t *testing.T) {
		list, err := service.Recommended(context.Background(), reader, current.ID, 5)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, other.ID, list[0].ID)
	})

	t.Run("no preferences falls back to latest", func(t *testing.T) {
		list, err := service.Recommended(context.Background(), premium, plain.ID, 5)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		for _, a := range list {
			assert.NotEqual(t, plain.ID, a.ID)
		}
	})

	t.Run("anonymous gets latest within limit", func(t *testing.T) {
		list, err := service.Recommended(context.Background(), visitor, "", 2)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestService_RecordImpression(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	published := seedArticle(t, service, "Counted", nil)
	unpublished := seedArticle(t, service, "Not yet", func(in *CreateInput) { in.Status = draft })

	session := "3f1c7f0e-5d7a-4e55-9d43-7c1b0d9f2a10"
	require.NoError(t, service.RecordImpression(context.Background(), &domain.ArticleView{
		ArticleID: published.ID, SessionID: &session,
	}))
	err := service.RecordImpression(context.Background(), &domain.ArticleView{ArticleID: unpublished.ID})

	assert.ErrorIs(t, err, ErrArticleNotFound)
	assert.Equal(t, 1, repo.articles[published.ID].ViewsCount)
	require.Len(t, repo.views, 1)
	assert.Equal(t, fixedNow, repo.views[0].ViewedAt)
}

func TestService_ListByAuthor(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo, nil, nil)
	seedArticle(t, service, "By known author", nil)

	list, total, err := service.ListByAuthor(context.Background(), visitor, testAuthorID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	_, _, err = service.ListByAuthor(context.Background(), visitor, "00000000-0000-0000-0000-00000000dead", 10, 0)
	assert.ErrorIs(t, err, ErrAuthorNotFound)
}

func TestNormalizeKeywords(t *testing.T) {
	got := normalizeKeywords([]string{" Politics ", "politics", "", "<b>Economy</b>", "Київ"})

	assert.Equal(t, []string{"politics", "economy", "київ"}, got)
}
