// Package postgres provides PostgreSQL implementation of the articles repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/newsroom/internal/articles"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements articles.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const articleSelect = `
	SELECT a.id, a.author_id, a.category_id, a.title, a.content, a.status,
	       a.is_exclusive, a.is_breaking, a.views_count, a.keywords,
	       a.created_at, a.updated_at, a.published_at,
	       au.first_name, au.last_name, c.name, c.slug
	FROM articles a
	JOIN authors au ON au.id = a.author_id
	LEFT JOIN categories c ON c.id = a.category_id
`

const newestFirst = ` ORDER BY COALESCE(a.published_at, a.created_at) DESC, a.id`

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var (
		a            domain.Article
		author       domain.ArticleAuthor
		categoryName *string
		categorySlug *string
	)
	err := row.Scan(
		&a.ID,
		&a.AuthorID,
		&a.CategoryID,
		&a.Title,
		&a.Content,
		&a.Status,
		&a.IsExclusive,
		&a.IsBreaking,
		&a.ViewsCount,
		&a.Keywords,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.PublishedAt,
		&author.FirstName,
		&author.LastName,
		&categoryName,
		&categorySlug,
	)
	if err != nil {
		return nil, err
	}

	author.ID = a.AuthorID
	a.Author = &author
	if a.CategoryID != nil && categoryName != nil && categorySlug != nil {
		a.Category = &domain.ArticleCategory{ID: *a.CategoryID, Name: *categoryName, Slug: *categorySlug}
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	return &a, nil
}

func collectArticles(rows pgx.Rows) ([]domain.Article, error) {
	defer rows.Close()

	list := make([]domain.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		list = append(list, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return list, nil
}

// where accumulates SQL conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) page(limit, offset int) string {
	return fmt.Sprintf(" LIMIT %s OFFSET %s", w.arg(limit), w.arg(offset))
}

// listPage counts and fetches one page. joins extends the base FROM clause.
func (r *Repository) listPage(ctx context.Context, w *where, joins, order string, limit, offset int) ([]domain.Article, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+listFrom+joins+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	query := articleSelect + joins + w.String() + order + w.page(limit, offset)
	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	list, err := collectArticles(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

const listFrom = `FROM articles a
	JOIN authors au ON au.id = a.author_id
	LEFT JOIN categories c ON c.id = a.category_id`

// Create inserts an article outside a transaction.
func (r *Repository) Create(ctx context.Context, article *domain.Article) error {
	return create(ctx, r.db, article)
}

// CreateTx inserts an article and reloads it with author and category.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, article *domain.Article) error {
	return create(ctx, tx, article)
}

func create(ctx context.Context, q querier, article *domain.Article) error {
	query := `
		INSERT INTO articles (author_id, category_id, title, content, status,
		                      is_exclusive, is_breaking, keywords, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := q.QueryRow(ctx, query,
		article.AuthorID,
		article.CategoryID,
		article.Title,
		article.Content,
		article.Status,
		article.IsExclusive,
		article.IsBreaking,
		article.Keywords,
		article.PublishedAt,
	).Scan(&article.ID)
	if err != nil {
		return mapWriteError("create article", err)
	}
	return reload(ctx, q, article)
}

func reload(ctx context.Context, q querier, article *domain.Article) error {
	fresh, err := scanArticle(q.QueryRow(ctx, articleSelect+` WHERE a.id = $1`, article.ID))
	if err != nil {
		return fmt.Errorf("reload article: %w", err)
	}
	*article = *fresh
	return nil
}

func mapWriteError(op string, err error) error {
	if postgres.IsForeignKeyViolation(err) {
		switch postgres.ConstraintName(err) {
		case "articles_author_id_fkey":
			return articles.ErrAuthorNotFound
		case "articles_category_id_fkey":
			return articles.ErrCategoryNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetByID retrieves an article with author and category.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	a, err := scanArticle(r.db.QueryRow(ctx, articleSelect+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, articles.ErrArticleNotFound
		}
		return nil, fmt.Errorf("get article by id: %w", err)
	}
	return a, nil
}

// GetByIDForUpdateTx retrieves and row-locks an article.
func (r *Repository) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Article, error) {
	a, err := scanArticle(tx.QueryRow(ctx, articleSelect+` WHERE a.id = $1 FOR UPDATE OF a`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, articles.ErrArticleNotFound
		}
		return nil, fmt.Errorf("get article for update: %w", err)
	}
	return a, nil
}

// List returns articles matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter articles.Filter) ([]domain.Article, int, error) {
	w := &where{}
	if filter.Status != nil {
		w.add("a.status = " + w.arg(*filter.Status))
	}
	if filter.CategoryID != "" {
		w.add("a.category_id = " + w.arg(filter.CategoryID))
	}
	if filter.CategorySlug != "" {
		w.add("c.slug = " + w.arg(filter.CategorySlug))
	}
	if filter.AuthorID != "" {
		w.add("a.author_id = " + w.arg(filter.AuthorID))
	}
	if filter.Exclusive != nil {
		w.add("a.is_exclusive = " + w.arg(*filter.Exclusive))
	}
	if !filter.IncludeExclusive {
		w.add("NOT a.is_exclusive")
	}
	return r.listPage(ctx, w, "", newestFirst, filter.Limit, filter.Offset)
}

// Search matches published articles by title, content or keyword.
func (r *Repository) Search(ctx context.Context, filter articles.SearchFilter) ([]domain.Article, int, error) {
	w := &where{}
	w.add("a.status = 'published'")
	pattern := w.arg("%" + escapeLike(filter.Query) + "%")
	w.add(fmt.Sprintf(`(a.title ILIKE %[1]s OR a.content ILIKE %[1]s
		OR EXISTS (SELECT 1 FROM unnest(a.keywords) k WHERE k ILIKE %[1]s))`, pattern))
	if filter.DateFrom != nil {
		w.add("a.published_at >= " + w.arg(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		w.add("a.published_at < " + w.arg(*filter.DateTo))
	}
	if !filter.IncludeExclusive {
		w.add("NOT a.is_exclusive")
	}
	return r.listPage(ctx, w, "", newestFirst, filter.Limit, filter.Offset)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Recommended returns published articles in the given categories or by
// authors the user follows.
func (r *Repository) Recommended(ctx context.Context, filter articles.RecommendFilter) ([]domain.Article, error) {
	w := &where{}
	w.add("a.status = 'published'")
	w.add(fmt.Sprintf(`(c.slug = ANY(%s)
		OR a.author_id IN (SELECT author_id FROM author_followers WHERE user_id = %s))`,
		w.arg(filter.CategorySlugs), w.arg(filter.UserID)))
	if filter.ExcludeID != "" {
		w.add("a.id <> " + w.arg(filter.ExcludeID))
	}
	if !filter.IncludeExclusive {
		w.add("NOT a.is_exclusive")
	}

	query := articleSelect + w.String() + newestFirst + " LIMIT " + w.arg(filter.Limit)
	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("recommended articles: %w", err)
	}
	return collectArticles(rows)
}

// Update saves an article outside a transaction.
func (r *Repository) Update(ctx context.Context, article *domain.Article) error {
	return update(ctx, r.db, article)
}

// UpdateTx saves an article and reloads it with author and category.
func (r *Repository) UpdateTx(ctx context.Context, tx pgx.Tx, article *domain.Article) error {
	return update(ctx, tx, article)
}

func update(ctx context.Context, q querier, article *domain.Article) error {
	query := `
		UPDATE articles
		SET author_id = $2, category_id = $3, title = $4, content = $5, status = $6,
		    is_exclusive = $7, is_breaking = $8, keywords = $9, published_at = $10,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := q.Exec(ctx, query,
		article.ID,
		article.AuthorID,
		article.CategoryID,
		article.Title,
		article.Content,
		article.Status,
		article.IsExclusive,
		article.IsBreaking,
		article.Keywords,
		article.PublishedAt,
	)
	if err != nil {
		return mapWriteError("update article", err)
	}
	if result.RowsAffected() == 0 {
		return articles.ErrArticleNotFound
	}
	return reload(ctx, q, article)
}

// Delete removes an article. Comments, interactions, views and notifications cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if result.RowsAffected() == 0 {
		return articles.ErrArticleNotFound
	}
	return nil
}

// AuthorExists reports whether an author with id exists.
func (r *Repository) AuthorExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM authors WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check author: %w", err)
	}
	return exists, nil
}

// BeginTx starts a transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// SetInteraction adds or removes an interaction idempotently.
func (r *Repository) SetInteraction(ctx context.Context, userID, articleID string, t domain.InteractionType, active bool) error {
	var err error
	if active {
		_, err = r.db.Exec(ctx, `
			INSERT INTO article_interactions (user_id, article_id, interaction_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, article_id, interaction_type) DO NOTHING
		`, userID, articleID, t)
	} else {
		_, err = r.db.Exec(ctx, `
			DELETE FROM article_interactions
			WHERE user_id = $1 AND article_id = $2 AND interaction_type = $3
		`, userID, articleID, t)
	}
	if err != nil {
		return fmt.Errorf("set %s interaction: %w", t, err)
	}
	return nil
}

// ToggleInteraction flips an interaction and reports whether it is now set.
func (r *Repository) ToggleInteraction(ctx context.Context, userID, articleID string, t domain.InteractionType) (bool, error) {
	var active bool
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			DELETE FROM article_interactions
			WHERE user_id = $1 AND article_id = $2 AND interaction_type = $3
		`, userID, articleID, t)
		if err != nil {
			return fmt.Errorf("remove %s interaction: %w", t, err)
		}
		if result.RowsAffected() > 0 {
			active = false
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO article_interactions (user_id, article_id, interaction_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, article_id, interaction_type) DO NOTHING
		`, userID, articleID, t)
		if err != nil {
			return fmt.Errorf("add %s interaction: %w", t, err)
		}
		active = true
		return nil
	})
	return active, err
}

// HasInteraction reports whether the interaction exists.
func (r *Repository) HasInteraction(ctx context.Context, userID, articleID string, t domain.InteractionType) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM article_interactions
			WHERE user_id = $1 AND article_id = $2 AND interaction_type = $3
		)
	`, userID, articleID, t).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s interaction: %w", t, err)
	}
	return exists, nil
}

// CountInteractions counts interactions of a type on an article.
func (r *Repository) CountInteractions(ctx context.Context, articleID string, t domain.InteractionType) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM article_interactions WHERE article_id = $1 AND interaction_type = $2`,
		articleID, t,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s interactions: %w", t, err)
	}
	return n, nil
}

// ListInteracted returns published articles the user interacted with, most
// recent interaction first.
func (r *Repository) ListInteracted(ctx context.Context, filter articles.InteractionFilter) ([]domain.Article, int, error) {
	w := &where{}
	w.add("i.user_id = " + w.arg(filter.UserID))
	w.add("i.interaction_type = " + w.arg(filter.Type))
	w.add("a.status = 'published'")
	if !filter.IncludeExclusive {
		w.add("NOT a.is_exclusive")
	}
	joins := `
	JOIN article_interactions i ON i.article_id = a.id`
	return r.listPage(ctx, w, joins, " ORDER BY i.created_at DESC, a.id", filter.Limit, filter.Offset)
}

// ListInteractedIDs returns IDs of articles the user interacted with.
func (r *Repository) ListInteractedIDs(ctx context.Context, userID string, t domain.InteractionType) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT article_id FROM article_interactions
		WHERE user_id = $1 AND interaction_type = $2
		ORDER BY created_at DESC
	`, userID, t)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", t, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect %s ids: %w", t, err)
	}
	return ids, nil
}

// RecordView increments the counter and logs the view in one transaction.
func (r *Repository) RecordView(ctx context.Context, view *domain.ArticleView) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `UPDATE articles SET views_count = views_count + 1 WHERE id = $1`, view.ArticleID)
		if err != nil {
			return fmt.Errorf("increment views: %w", err)
		}
		if result.RowsAffected() == 0 {
			return articles.ErrArticleNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO article_views (article_id, user_id, session_id, ip_address, viewed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, view.ArticleID, view.UserID, view.SessionID, view.IPAddress, view.ViewedAt)
		if err != nil {
			return fmt.Errorf("insert article view: %w", err)
		}
		return nil
	})
}
