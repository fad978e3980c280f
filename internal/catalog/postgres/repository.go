// Package postgres provides PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/newsroom/internal/catalog"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateCategory creates a new category in the database.
func (r *Repository) CreateCategory(ctx context.Context, category *domain.Category) error {
	query := `
		INSERT INTO categories (name, slug, description, is_searchable)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		category.Name,
		category.Slug,
		category.Description,
		category.IsSearchable,
	).Scan(&category.ID, &category.CreatedAt)

	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return catalog.ErrSlugExists
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// GetCategoryByID retrieves a category by its ID.
func (r *Repository) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	return r.getCategory(ctx, "id", id)
}

// GetCategoryBySlug retrieves a category by its slug.
func (r *Repository) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return r.getCategory(ctx, "slug", slug)
}

func (r *Repository) getCategory(ctx context.Context, column, value string) (*domain.Category, error) {
	query := `
		SELECT id, name, slug, description, is_searchable, created_at
		FROM categories
		WHERE ` + column + ` = $1
	`
	var category domain.Category
	err := r.db.QueryRow(ctx, query, value).Scan(
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Description,
		&category.IsSearchable,
		&category.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category by %s: %w", column, err)
	}
	return &category, nil
}

// ListCategories retrieves categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context, filter catalog.CategoryFilter) ([]domain.Category, error) {
	query := `
		SELECT id, name, slug, description, is_searchable, created_at
		FROM categories
	`
	if filter.SearchableOnly {
		query += " WHERE is_searchable"
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var category domain.Category
		err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.Slug,
			&category.Description,
			&category.IsSearchable,
			&category.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// UpdateCategory updates an existing category.
func (r *Repository) UpdateCategory(ctx context.Context, category *domain.Category) error {
	query := `
		UPDATE categories
		SET name = $2, slug = $3, description = $4, is_searchable = $5
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		category.ID,
		category.Name,
		category.Slug,
		category.Description,
		category.IsSearchable,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return catalog.ErrSlugExists
		}
		return fmt.Errorf("update category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory deletes a category. Articles keep existing with no category.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

const authorSelect = `
	SELECT au.id, au.first_name, au.last_name, au.bio, au.created_at,
	       (SELECT COUNT(*) FROM articles ar WHERE ar.author_id = au.id) AS total_articles
	FROM authors au
`

func scanAuthor(row pgx.Row) (*domain.Author, error) {
	var author domain.Author
	err := row.Scan(
		&author.ID,
		&author.FirstName,
		&author.LastName,
		&author.Bio,
		&author.CreatedAt,
		&author.TotalArticles,
	)
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func collectAuthors(rows pgx.Rows) ([]domain.Author, error) {
	defer rows.Close()

	authors := make([]domain.Author, 0)
	for rows.Next() {
		author, err := scanAuthor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors = append(authors, *author)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authors: %w", err)
	}
	return authors, nil
}

// CreateAuthor creates a new author.
func (r *Repository) CreateAuthor(ctx context.Context, author *domain.Author) error {
	query := `
		INSERT INTO authors (first_name, last_name, bio)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, author.FirstName, author.LastName, author.Bio).
		Scan(&author.ID, &author.CreatedAt)
	if err != nil {
		return fmt.Errorf("create author: %w", err)
	}
	return nil
}

// GetAuthorByID retrieves an author with its article count.
func (r *Repository) GetAuthorByID(ctx context.Context, id string) (*domain.Author, error) {
	author, err := scanAuthor(r.db.QueryRow(ctx, authorSelect+` WHERE au.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrAuthorNotFound
		}
		return nil, fmt.Errorf("get author by id: %w", err)
	}
	return author, nil
}

// ListAuthors returns a page of authors ordered by last name, and the total.
func (r *Repository) ListAuthors(ctx context.Context, filter catalog.AuthorFilter) ([]domain.Author, int, error) {
	where := ""
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = ` WHERE au.first_name ILIKE $1 OR au.last_name ILIKE $1 OR au.bio ILIKE $1
			OR (au.first_name || ' ' || au.last_name) ILIKE $1`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM authors au`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count authors: %w", err)
	}

	query := authorSelect + where +
		fmt.Sprintf(` ORDER BY au.last_name, au.first_name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list authors: %w", err)
	}
	authors, err := collectAuthors(rows)
	if err != nil {
		return nil, 0, err
	}
	return authors, total, nil
}

// UpdateAuthor updates an author's names and bio.
func (r *Repository) UpdateAuthor(ctx context.Context, author *domain.Author) error {
	result, err := r.db.Exec(ctx,
		`UPDATE authors SET first_name = $2, last_name = $3, bio = $4 WHERE id = $1`,
		author.ID, author.FirstName, author.LastName, author.Bio,
	)
	if err != nil {
		return fmt.Errorf("update author: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrAuthorNotFound
	}
	return nil
}

// DeleteAuthor deletes an author. Authors referenced by articles are protected
// by a foreign key.
func (r *Repository) DeleteAuthor(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM authors WHERE id = $1`, id)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return catalog.ErrAuthorHasArticles
		}
		return fmt.Errorf("delete author: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrAuthorNotFound
	}
	return nil
}

// GetAuthorStatistics aggregates article counters for an author.
func (r *Repository) GetAuthorStatistics(ctx context.Context, id string) (*domain.AuthorStatistics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'published'),
			COUNT(*) FILTER (WHERE status = 'draft'),
			COUNT(*) FILTER (WHERE status = 'archived'),
			COALESCE(SUM(views_count), 0),
			COUNT(*) FILTER (WHERE is_exclusive),
			COUNT(*) FILTER (WHERE is_breaking)
		FROM articles
		WHERE author_id = $1
	`
	var stats domain.AuthorStatistics
	err := r.db.QueryRow(ctx, query, id).Scan(
		&stats.TotalArticles,
		&stats.PublishedArticles,
		&stats.DraftArticles,
		&stats.ArchivedArticles,
		&stats.TotalViews,
		&stats.ExclusiveArticles,
		&stats.BreakingArticles,
	)
	if err != nil {
		return nil, fmt.Errorf("get author statistics: %w", err)
	}
	return &stats, nil
}

// ListRecentAuthorArticles returns the author's latest articles of any status.
func (r *Repository) ListRecentAuthorArticles(ctx context.Context, id string, limit int) ([]domain.Article, error) {
	query := `
		SELECT id, author_id, category_id, title, status, is_exclusive, is_breaking,
		       views_count, created_at, updated_at, published_at
		FROM articles
		WHERE author_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent author articles: %w", err)
	}
	defer rows.Close()

	articles := make([]domain.Article, 0)
	for rows.Next() {
		var a domain.Article
		err := rows.Scan(
			&a.ID,
			&a.AuthorID,
			&a.CategoryID,
			&a.Title,
			&a.Status,
			&a.IsExclusive,
			&a.IsBreaking,
			&a.ViewsCount,
			&a.CreatedAt,
			&a.UpdatedAt,
			&a.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// ToggleFollow removes the follow edge if present, otherwise inserts it.
func (r *Repository) ToggleFollow(ctx context.Context, userID, authorID string) (bool, error) {
	var following bool
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`DELETE FROM author_followers WHERE user_id = $1 AND author_id = $2`,
			userID, authorID,
		)
		if err != nil {
			return fmt.Errorf("unfollow author: %w", err)
		}
		if result.RowsAffected() > 0 {
			following = false
			return nil
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO author_followers (user_id, author_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, authorID,
		)
		if err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return catalog.ErrAuthorNotFound
			}
			return fmt.Errorf("follow author: %w", err)
		}
		following = true
		return nil
	})
	return following, err
}

// IsFollowing reports whether the follow edge exists.
func (r *Repository) IsFollowing(ctx context.Context, userID, authorID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM author_followers WHERE user_id = $1 AND author_id = $2)`,
		userID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return exists, nil
}

// ListFollowedAuthors returns authors followed by the user, most recent first.
func (r *Repository) ListFollowedAuthors(ctx context.Context, userID string) ([]domain.Author, error) {
	query := authorSelect + `
		JOIN author_followers f ON f.author_id = au.id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list followed authors: %w", err)
	}
	return collectAuthors(rows)
}
