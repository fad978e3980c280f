// Package articles provides article listing, reader interactions and the
// editorial publish workflow.
package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/bissquit/newsroom/internal/pkg/sanitize"
	"github.com/jackc/pgx/v5"
)

// minSearchLength is the shortest query that is actually searched.
const minSearchLength = 3

const dateLayout = "2006-01-02"

// PublishNotifier fans a freshly published article out to readers. The
// fan-out runs inside the publishing transaction. Deliver runs after commit
// and must not block on the push transport.
type PublishNotifier interface {
	OnArticlePublished(ctx context.Context, tx pgx.Tx, article *domain.Article) (*domain.PublishReport, error)
	Deliver(ctx context.Context, report *domain.PublishReport)
}

// UserReader loads reader profiles for recommendations.
type UserReader interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Viewer describes who is reading.
type Viewer struct {
	UserID      string
	IsAdmin     bool
	Permissions domain.Permissions
}

// CanSeeExclusive reports whether exclusive articles are visible to the viewer.
func (v Viewer) CanSeeExclusive() bool {
	return v.IsAdmin || v.Permissions.Has(domain.PermissionExclusiveContent)
}

// Service implements article business logic.
type Service struct {
	repo     Repository
	users    UserReader
	notifier PublishNotifier
	now      func() time.Time
}

// NewService creates a new articles service. notifier may be nil.
func NewService(repo Repository, users UserReader, notifier PublishNotifier) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		now:      time.Now,
	}
}

// ArticleDetail is an article with reader-specific flags.
type ArticleDetail struct {
	*domain.Article
	LikesCount int  `json:"likes_count"`
	IsSaved    bool `json:"is_saved"`
	IsLiked    bool `json:"is_liked"`
}

// List returns published articles visible to the viewer.
func (s *Service) List(ctx context.Context, viewer Viewer, filter Filter) ([]domain.Article, int, error) {
	published := domain.ArticleStatusPublished
	filter.Status = &published
	filter.IncludeExclusive = viewer.CanSeeExclusive()
	return s.repo.List(ctx, filter)
}

// ListByAuthor returns published articles of an author visible to the viewer.
func (s *Service) ListByAuthor(ctx context.Context, viewer Viewer, authorID string, limit, offset int) ([]domain.Article, int, error) {
	exists, err := s.repo.AuthorExists(ctx, authorID)
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, ErrAuthorNotFound
	}
	return s.List(ctx, viewer, Filter{AuthorID: authorID, Limit: limit, Offset: offset})
}

// AdminList returns articles of any status.
func (s *Service) AdminList(ctx context.Context, filter Filter) ([]domain.Article, int, error) {
	filter.IncludeExclusive = true
	return s.repo.List(ctx, filter)
}

// Get returns a published article. Unpublished articles are visible to admins only.
func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (*ArticleDetail, error) {
	article, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !article.IsPublished() && !viewer.IsAdmin {
		return nil, ErrArticleNotFound
	}
	if article.IsExclusive && !viewer.CanSeeExclusive() {
		return nil, ErrExclusiveContent
	}

	detail := &ArticleDetail{Article: article}
	detail.LikesCount, err = s.repo.CountInteractions(ctx, id, domain.InteractionLiked)
	if err != nil {
		return nil, err
	}

	if viewer.UserID != "" {
		if detail.IsSaved, err = s.repo.HasInteraction(ctx, viewer.UserID, id, domain.InteractionSaved); err != nil {
			return nil, err
		}
		if detail.IsLiked, err = s.repo.HasInteraction(ctx, viewer.UserID, id, domain.InteractionLiked); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// SearchInput contains raw search parameters.
type SearchInput struct {
	Query    string
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

// Search matches published articles by title, content and keywords. Queries
// shorter than three characters return nothing.
func (s *Service) Search(ctx context.Context, viewer Viewer, input SearchInput) ([]domain.Article, int, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, 0, ErrQueryRequired
	}

	filter := SearchFilter{
		Query:            query,
		IncludeExclusive: viewer.CanSeeExclusive(),
		Limit:            input.Limit,
		Offset:           input.Offset,
	}

	var err error
	if filter.DateFrom, err = parseDate(input.DateFrom); err != nil {
		return nil, 0, err
	}
	if filter.DateTo, err = parseDate(input.DateTo); err != nil {
		return nil, 0, err
	}
	if filter.DateTo != nil {
		end := filter.DateTo.AddDate(0, 0, 1)
		filter.DateTo = &end
	}

	if utf8.RuneCountInString(query) < minSearchLength {
		return []domain.Article{}, 0, nil
	}
	return s.repo.Search(ctx, filter)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &t, nil
}

// Recommended returns published articles from the reader's favorite
// categories and followed authors. Anonymous readers, and readers whose
// interests match nothing, get the latest articles.
func (s *Service) Recommended(ctx context.Context, viewer Viewer, excludeID string, limit int) ([]domain.Article, error) {
	if viewer.UserID != "" {
		user, err := s.users.GetUserByID(ctx, viewer.UserID)
		if err != nil {
			return nil, fmt.Errorf("load reader: %w", err)
		}

		recommended, err := s.repo.Recommended(ctx, RecommendFilter{
			UserID:           viewer.UserID,
			CategorySlugs:    user.Preferences.FavoriteCategories(),
			ExcludeID:        excludeID,
			IncludeExclusive: viewer.CanSeeExclusive(),
			Limit:            limit,
		})
		if err != nil {
			return nil, err
		}
		if len(recommended) > 0 {
			return recommended, nil
		}
	}

	latest, _, err := s.List(ctx, viewer, Filter{Limit: limit + 1})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Article, 0, limit)
	for _, a := range latest {
		if a.ID == excludeID || len(out) == limit {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// visibleArticle loads an article a reader may interact with.
func (s *Service) visibleArticle(ctx context.Context, viewer Viewer, id string) (*domain.Article, error) {
	if viewer.UserID == "" {
		return nil, ErrReaderRequired
	}
	article, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !article.IsPublished() {
		return nil, ErrArticleNotFound
	}
	if article.IsExclusive && !viewer.CanSeeExclusive() {
		return nil, ErrExclusiveContent
	}
	return article, nil
}

// SetSaved saves or unsaves an article for the reader.
func (s *Service) SetSaved(ctx context.Context, viewer Viewer, id string, saved bool) error {
	if _, err := s.visibleArticle(ctx, viewer, id); err != nil {
		return err
	}
	return s.repo.SetInteraction(ctx, viewer.UserID, id, domain.InteractionSaved, saved)
}

// Toggle flips a saved or liked mark and returns the new state.
func (s *Service) Toggle(ctx context.Context, viewer Viewer, id string, t domain.InteractionType) (bool, error) {
	if _, err := s.visibleArticle(ctx, viewer, id); err != nil {
		return false, err
	}
	return s.repo.ToggleInteraction(ctx, viewer.UserID, id, t)
}

// ListInteracted returns the reader's saved or liked articles.
func (s *Service) ListInteracted(ctx context.Context, viewer Viewer, t domain.InteractionType, limit, offset int) ([]domain.Article, int, error) {
	if viewer.UserID == "" {
		return nil, 0, ErrReaderRequired
	}
	return s.repo.ListInteracted(ctx, InteractionFilter{
		UserID:           viewer.UserID,
		Type:             t,
		IncludeExclusive: viewer.CanSeeExclusive(),
		Limit:            limit,
		Offset:           offset,
	})
}

// ListInteractedIDs returns only the IDs of the reader's saved or liked articles.
func (s *Service) ListInteractedIDs(ctx context.Context, viewer Viewer, t domain.InteractionType) ([]string, error) {
	if viewer.UserID == "" {
		return nil, ErrReaderRequired
	}
	return s.repo.ListInteractedIDs(ctx, viewer.UserID, t)
}

// RecordImpression counts a view of a published article.
func (s *Service) RecordImpression(ctx context.Context, view *domain.ArticleView) error {
	article, err := s.repo.GetByID(ctx, view.ArticleID)
	if err != nil {
		return err
	}
	if !article.IsPublished() {
		return ErrArticleNotFound
	}
	view.ViewedAt = s.now()
	return s.repo.RecordView(ctx, view)
}

// CreateInput contains data for a new article.
type CreateInput struct {
	Title       string
	Content     string
	AuthorID    string
	CategoryID  *string
	Status      domain.ArticleStatus
	IsExclusive bool
	IsBreaking  bool
	Keywords    []string
}

// UpdateInput contains optional article fields. An empty CategoryID clears
// the category.
type UpdateInput struct {
	Title       *string
	Content     *string
	AuthorID    *string
	CategoryID  *string
	Status      *domain.ArticleStatus
	IsExclusive *bool
	IsBreaking  *bool
	Keywords    []string
}

// MutationResult is an article after an editorial change, with the fan-out
// report when the change published it.
type MutationResult struct {
	Article  *domain.Article       `json:"article"`
	Dispatch *domain.PublishReport `json:"dispatch,omitempty"`
}

// Create stores a new article. Creating it as published runs the fan-out.
func (s *Service) Create(ctx context.Context, input CreateInput) (*MutationResult, error) {
	status := input.Status
	if status == "" {
		status = domain.ArticleStatusDraft
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	article := &domain.Article{
		AuthorID:    input.AuthorID,
		CategoryID:  emptyToNil(input.CategoryID),
		Title:       sanitize.Text(input.Title),
		Content:     sanitize.HTML(input.Content),
		Status:      status,
		IsExclusive: input.IsExclusive,
		IsBreaking:  input.IsBreaking,
		Keywords:    normalizeKeywords(input.Keywords),
	}
	if article.Title == "" || article.Content == "" {
		return nil, ErrEmptyContent
	}

	return s.commit(ctx, article, "", func(tx pgx.Tx) error {
		return s.repo.CreateTx(ctx, tx, article)
	})
}

// Update applies an editorial change. A transition into published runs the
// fan-out in the same transaction.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*MutationResult, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	article, err := s.repo.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	previous := article.Status

	if err := applyUpdate(article, input); err != nil {
		return nil, err
	}

	return s.finish(ctx, tx, article, previous, func(tx pgx.Tx) error {
		return s.repo.UpdateTx(ctx, tx, article)
	})
}

// UpdateStatus moves an article to another status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.ArticleStatus) (*MutationResult, error) {
	return s.Update(ctx, id, UpdateInput{Status: &status})
}

// Delete removes an article with its comments, interactions and views.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AdminGet returns an article of any status.
func (s *Service) AdminGet(ctx context.Context, id string) (*domain.Article, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) commit(ctx context.Context, article *domain.Article, previous domain.ArticleStatus, write func(pgx.Tx) error) (*MutationResult, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	return s.finish(ctx, tx, article, previous, write)
}

func (s *Service) finish(ctx context.Context, tx pgx.Tx, article *domain.Article, previous domain.ArticleStatus, write func(pgx.Tx) error) (*MutationResult, error) {
	publishing := article.IsPublished() && previous != domain.ArticleStatusPublished
	if publishing && article.PublishedAt == nil {
		now := s.now()
		article.PublishedAt = &now
	}

	if err := write(tx); err != nil {
		return nil, err
	}

	var report *domain.PublishReport
	if publishing && s.notifier != nil {
		report = s.fanOut(ctx, tx, article)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if report != nil && len(report.Deliveries) > 0 {
		s.notifier.Deliver(ctx, report)
	}
	return &MutationResult{Article: article, Dispatch: report}, nil
}

// fanOut runs the publish notifier inside a savepoint so that its failure
// never rolls back the article itself.
func (s *Service) fanOut(ctx context.Context, tx pgx.Tx, article *domain.Article) *domain.PublishReport {
	logger := ctxlog.FromContext(ctx).With("article_id", article.ID)

	sp, err := tx.Begin(ctx)
	if err != nil {
		logger.Error("begin fan-out savepoint", "error", err)
		return nil
	}

	report, err := s.notifier.OnArticlePublished(ctx, sp, article)
	if err != nil {
		logger.Error("publish fan-out failed", "error", err)
		rollback(ctx, sp)
		return nil
	}
	if err := sp.Commit(ctx); err != nil {
		logger.Error("release fan-out savepoint", "error", err)
		return nil
	}

	level := slog.LevelInfo
	if len(report.Failed()) > 0 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "article published",
		"notifications", report.Created(),
		"failed_handlers", report.Failed(),
	)
	return report
}

func applyUpdate(article *domain.Article, input UpdateInput) error {
	if input.Title != nil {
		article.Title = sanitize.Text(*input.Title)
	}
	if input.Content != nil {
		article.Content = sanitize.HTML(*input.Content)
	}
	if article.Title == "" || article.Content == "" {
		return ErrEmptyContent
	}
	if input.AuthorID != nil {
		article.AuthorID = *input.AuthorID
	}
	if input.CategoryID != nil {
		article.CategoryID = emptyToNil(input.CategoryID)
	}
	if input.Status != nil {
		article.Status = *input.Status
	}
	if input.IsExclusive != nil {
		article.IsExclusive = *input.IsExclusive
	}
	if input.IsBreaking != nil {
		article.IsBreaking = *input.IsBreaking
	}
	if input.Keywords != nil {
		article.Keywords = normalizeKeywords(input.Keywords)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		ctxlog.FromContext(ctx).Error("failed to rollback transaction", "error", err)
	}
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.ToLower(sanitize.Text(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
