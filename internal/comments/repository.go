package comments

import (
	"context"

	"github.com/bissquit/newsroom/internal/domain"
)

// Repository defines the interface for comment data operations.
type Repository interface {
	// ArticleExists reports whether a published article with id exists.
	ArticleExists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter Filter) ([]domain.Comment, int, error)
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	Create(ctx context.Context, comment *domain.Comment) error
	UpdateText(ctx context.Context, id, text string) (*domain.Comment, error)
	SetStatus(ctx context.Context, id string, status domain.CommentStatus) (*domain.Comment, error)
	Delete(ctx context.Context, id string) error
}

// Filter selects comments of an article, newest first.
type Filter struct {
	ArticleID string
	// Status is nil for every status.
	Status *domain.CommentStatus
	Limit  int
	Offset int
}
