// Package catalog manages categories and authors.
package catalog

import (
	"context"
	"strings"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/sanitize"
	"github.com/bissquit/newsroom/internal/pkg/slug"
)

// recentArticlesLimit is how many latest articles the admin author view shows.
const recentArticlesLimit = 5

// Service implements catalog business logic.
type Service struct {
	repo Repository
}

// NewService creates a new catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CategoryInput contains category data for create and update.
type CategoryInput struct {
	Name         string
	Slug         string
	Description  string
	IsSearchable bool
}

func (in CategoryInput) toDomain() (*domain.Category, error) {
	name := sanitize.Text(in.Name)
	if name == "" {
		return nil, ErrEmptyCategoryName
	}

	s := strings.TrimSpace(in.Slug)
	if s == "" {
		s = slug.Make(name)
	}
	if !slug.IsValid(s) {
		return nil, ErrInvalidSlug
	}

	return &domain.Category{
		Name:         name,
		Slug:         s,
		Description:  sanitize.Text(in.Description),
		IsSearchable: in.IsSearchable,
	}, nil
}

// ListCategories returns all categories ordered by name.
func (s *Service) ListCategories(ctx context.Context, filter CategoryFilter) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx, filter)
}

// GetCategoryBySlug retrieves a category by slug.
func (s *Service) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return s.repo.GetCategoryBySlug(ctx, slug)
}

// GetCategoryByID retrieves a category by ID.
func (s *Service) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	return s.repo.GetCategoryByID(ctx, id)
}

// CreateCategory creates a category, deriving the slug from the name when
// none is given.
func (s *Service) CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	category, err := input.toDomain()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// UpdateCategory replaces category fields.
func (s *Service) UpdateCategory(ctx context.Context, id string, input CategoryInput) (*domain.Category, error) {
	existing, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category, err := input.toDomain()
	if err != nil {
		return nil, err
	}
	category.ID = existing.ID
	category.CreatedAt = existing.CreatedAt

	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory removes a category. Its articles become uncategorized.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.repo.DeleteCategory(ctx, id)
}

// AuthorInput contains author data for create and update.
type AuthorInput struct {
	FirstName string
	LastName  string
	Bio       string
}

func (in AuthorInput) toDomain() (*domain.Author, error) {
	first := sanitize.Text(in.FirstName)
	last := sanitize.Text(in.LastName)
	if first == "" || last == "" {
		return nil, ErrInvalidAuthorName
	}
	return &domain.Author{
		FirstName: first,
		LastName:  last,
		Bio:       sanitize.Text(in.Bio),
	}, nil
}

// GetAuthor retrieves an author by ID.
func (s *Service) GetAuthor(ctx context.Context, id string) (*domain.Author, error) {
	return s.repo.GetAuthorByID(ctx, id)
}

// ListAuthors returns a page of authors and the total count.
func (s *Service) ListAuthors(ctx context.Context, filter AuthorFilter) ([]domain.Author, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListAuthors(ctx, filter)
}

// AuthorDetail is an author with statistics and latest articles.
type AuthorDetail struct {
	*domain.Author
	Statistics     *domain.AuthorStatistics `json:"statistics"`
	RecentArticles []domain.Article         `json:"recent_articles"`
}

// GetAuthorDetail retrieves an author with statistics for the admin view.
func (s *Service) GetAuthorDetail(ctx context.Context, id string) (*AuthorDetail, error) {
	author, err := s.repo.GetAuthorByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.GetAuthorStatistics(ctx, id)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.ListRecentAuthorArticles(ctx, id, recentArticlesLimit)
	if err != nil {
		return nil, err
	}

	return &AuthorDetail{Author: author, Statistics: stats, RecentArticles: recent}, nil
}

// GetAuthorStatistics returns aggregated counters for an author.
func (s *Service) GetAuthorStatistics(ctx context.Context, id string) (*domain.AuthorStatistics, error) {
	if _, err := s.repo.GetAuthorByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetAuthorStatistics(ctx, id)
}

// CreateAuthor creates an author.
func (s *Service) CreateAuthor(ctx context.Context, input AuthorInput) (*domain.Author, error) {
	author, err := input.toDomain()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateAuthor(ctx, author); err != nil {
		return nil, err
	}
	return author, nil
}

// UpdateAuthor replaces author fields.
func (s *Service) UpdateAuthor(ctx context.Context, id string, input AuthorInput) (*domain.Author, error) {
	author, err := s.repo.GetAuthorByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := input.toDomain()
	if err != nil {
		return nil, err
	}
	author.FirstName = updated.FirstName
	author.LastName = updated.LastName
	author.Bio = updated.Bio

	if err := s.repo.UpdateAuthor(ctx, author); err != nil {
		return nil, err
	}
	return author, nil
}

// DeleteAuthor removes an author without articles.
func (s *Service) DeleteAuthor(ctx context.Context, id string) error {
	author, err := s.repo.GetAuthorByID(ctx, id)
	if err != nil {
		return err
	}
	if author.TotalArticles > 0 {
		return ErrAuthorHasArticles
	}
	return s.repo.DeleteAuthor(ctx, id)
}

// ToggleFollow follows or unfollows an author.
func (s *Service) ToggleFollow(ctx context.Context, userID, authorID string) (bool, error) {
	if _, err := s.repo.GetAuthorByID(ctx, authorID); err != nil {
		return false, err
	}
	return s.repo.ToggleFollow(ctx, userID, authorID)
}

// IsFollowing reports whether the user follows the author.
func (s *Service) IsFollowing(ctx context.Context, userID, authorID string) (bool, error) {
	return s.repo.IsFollowing(ctx, userID, authorID)
}

// ListFollowedAuthors returns the authors the user follows.
func (s *Service) ListFollowedAuthors(ctx context.Context, userID string) ([]domain.Author, error) {
	return s.repo.ListFollowedAuthors(ctx, userID)
}
