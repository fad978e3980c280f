package catalog

import (
	"context"

	"github.com/bissquit/newsroom/internal/domain"
)

// Repository defines the interface for catalog data operations.
type Repository interface {
	CreateCategory(ctx context.Context, category *domain.Category) error
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	ListCategories(ctx context.Context, filter CategoryFilter) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error

	CreateAuthor(ctx context.Context, author *domain.Author) error
	GetAuthorByID(ctx context.Context, id string) (*domain.Author, error)
	ListAuthors(ctx context.Context, filter AuthorFilter) ([]domain.Author, int, error)
	UpdateAuthor(ctx context.Context, author *domain.Author) error
	DeleteAuthor(ctx context.Context, id string) error
	GetAuthorStatistics(ctx context.Context, id string) (*domain.AuthorStatistics, error)
	ListRecentAuthorArticles(ctx context.Context, id string, limit int) ([]domain.Article, error)

	// ToggleFollow flips the follow edge and reports whether the user now follows the author.
	ToggleFollow(ctx context.Context, userID, authorID string) (bool, error)
	IsFollowing(ctx context.Context, userID, authorID string) (bool, error)
	ListFollowedAuthors(ctx context.Context, userID string) ([]domain.Author, error)
}

// CategoryFilter represents filter criteria for listing categories.
type CategoryFilter struct {
	SearchableOnly bool
}

// AuthorFilter represents filter criteria for listing authors. Search matches
// names and bio case-insensitively.
type AuthorFilter struct {
	Search string
	Limit  int
	Offset int
}
