// Package postgres provides PostgreSQL implementation of the comments repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/newsroom/internal/comments"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements comments.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const commentSelect = `
	SELECT c.id, c.article_id, c.user_id, u.username, c.body, c.status, c.created_at, c.updated_at
	FROM comments c
	JOIN users u ON u.id = c.user_id
`

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.ArticleID, &c.UserID, &c.Username, &c.Text, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ArticleExists reports whether a published article exists.
func (r *Repository) ArticleExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE id = $1 AND status = 'published')`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check article: %w", err)
	}
	return exists, nil
}

// List returns a page of comments, newest first, with the total count.
func (r *Repository) List(ctx context.Context, filter comments.Filter) ([]domain.Comment, int, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	where := ` WHERE ($1 = '' OR c.article_id::text = $1) AND ($2::text IS NULL OR c.status = $2)`

	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments c`+where, filter.ArticleID, status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	rows, err := r.db.Query(ctx,
		commentSelect+where+` ORDER BY c.created_at DESC, c.id DESC LIMIT $3 OFFSET $4`,
		filter.ArticleID, status, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		list = append(list, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return list, total, nil
}

// GetByID retrieves a comment by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	c, err := scanComment(r.db.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, comments.ErrCommentNotFound
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// Create inserts a comment and fills its generated fields.
func (r *Repository) Create(ctx context.Context, comment *domain.Comment) error {
	query := `
		WITH inserted AS (
			INSERT INTO comments (article_id, user_id, body, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id, user_id, created_at, updated_at
		)
		SELECT i.id, u.username, i.created_at, i.updated_at
		FROM inserted i
		JOIN users u ON u.id = i.user_id
	`
	err := r.db.QueryRow(ctx, query, comment.ArticleID, comment.UserID, comment.Text, comment.Status).
		Scan(&comment.ID, &comment.Username, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return comments.ErrArticleNotFound
		}
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// UpdateText replaces the text of a comment.
func (r *Repository) UpdateText(ctx context.Context, id, text string) (*domain.Comment, error) {
	return r.update(ctx, `UPDATE comments SET body = $2, updated_at = NOW() WHERE id = $1`, id, text)
}

// SetStatus changes the moderation status of a comment.
func (r *Repository) SetStatus(ctx context.Context, id string, status domain.CommentStatus) (*domain.Comment, error) {
	return r.update(ctx, `UPDATE comments SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
}

func (r *Repository) update(ctx context.Context, query, id, value string) (*domain.Comment, error) {
	result, err := r.db.Exec(ctx, query, id, value)
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, comments.ErrCommentNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a comment.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return comments.ErrCommentNotFound
	}
	return nil
}
