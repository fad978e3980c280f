// Package comments provides reader comments on articles.
package comments

import (
	"context"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/sanitize"
)

// Service implements comment business logic.
type Service struct {
	repo Repository
}

// NewService creates a new comments service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns active comments of a published article.
func (s *Service) List(ctx context.Context, articleID string, limit, offset int) ([]domain.Comment, int, error) {
	if err := s.requireArticle(ctx, articleID); err != nil {
		return nil, 0, err
	}
	active := domain.CommentStatusActive
	return s.repo.List(ctx, Filter{ArticleID: articleID, Status: &active, Limit: limit, Offset: offset})
}

// AdminList returns comments of an article in any status, or in status when set.
func (s *Service) AdminList(ctx context.Context, filter Filter) ([]domain.Comment, int, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

// Get returns a comment by ID. Hidden comments are not found.
func (s *Service) Get(ctx context.Context, id string) (*domain.Comment, error) {
	comment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.Status != domain.CommentStatusActive {
		return nil, ErrCommentNotFound
	}
	return comment, nil
}

// Create adds a comment by userID to a published article.
func (s *Service) Create(ctx context.Context, userID, articleID, text string) (*domain.Comment, error) {
	text = sanitize.Text(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := s.requireArticle(ctx, articleID); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ArticleID: articleID,
		UserID:    userID,
		Text:      text,
		Status:    domain.CommentStatusActive,
	}
	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Update replaces the text of a comment. Only its author may edit it.
func (s *Service) Update(ctx context.Context, userID, id, text string) (*domain.Comment, error) {
	comment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, ErrNotOwner
	}

	text = sanitize.Text(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	return s.repo.UpdateText(ctx, id, text)
}

// Delete removes a comment. Its author and admins may delete it.
func (s *Service) Delete(ctx context.Context, principal domain.Principal, id string) error {
	comment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() && comment.UserID != principal.ID {
		return ErrNotOwner
	}
	return s.repo.Delete(ctx, id)
}

// SetStatus hides or restores a comment.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.CommentStatus) (*domain.Comment, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.SetStatus(ctx, id, status)
}

func (s *Service) requireArticle(ctx context.Context, articleID string) error {
	exists, err := s.repo.ArticleExists(ctx, articleID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrArticleNotFound
	}
	return nil
}
