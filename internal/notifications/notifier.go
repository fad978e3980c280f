package notifications

import (
	"context"

	"github.com/bissquit/newsroom/internal/domain"
)

// PublishHandler selects the readers to notify about a published article.
// Handlers run in order, each inside its own savepoint.
type PublishHandler interface {
	Name() string
	Handle(ctx context.Context, repo TxRepository, article *domain.Article) ([]domain.Notification, error)
}

// DefaultHandlers returns the standard fan-out order.
func DefaultHandlers(renderer *Renderer) []PublishHandler {
	return []PublishHandler{
		NewBreakingNewsHandler(renderer),
		NewFavoriteCategoryHandler(renderer),
		NewAuthorFollowHandler(renderer),
	}
}

// BreakingNewsHandler notifies readers with the breakingNews preference
// about breaking articles.
type BreakingNewsHandler struct {
	renderer *Renderer
}

// NewBreakingNewsHandler creates a BreakingNewsHandler.
func NewBreakingNewsHandler(renderer *Renderer) *BreakingNewsHandler {
	return &BreakingNewsHandler{renderer: renderer}
}

// Name returns the handler name.
func (h *BreakingNewsHandler) Name() string { return string(domain.NotificationBreakingNews) }

// Handle builds one notification per subscribed reader.
func (h *BreakingNewsHandler) Handle(ctx context.Context, repo TxRepository, article *domain.Article) ([]domain.Notification, error) {
	if !article.IsBreaking {
		return nil, nil
	}
	userIDs, err := repo.BreakingNewsRecipients(ctx)
	if err != nil {
		return nil, err
	}
	return build(h.renderer, domain.NotificationBreakingNews, article, userIDs)
}

// FavoriteCategoryHandler notifies readers who list the article's category
// among their favorites.
type FavoriteCategoryHandler struct {
	renderer *Renderer
}

// NewFavoriteCategoryHandler creates a FavoriteCategoryHandler.
func NewFavoriteCategoryHandler(renderer *Renderer) *FavoriteCategoryHandler {
	return &FavoriteCategoryHandler{renderer: renderer}
}

// Name returns the handler name.
func (h *FavoriteCategoryHandler) Name() string { return string(domain.NotificationFavoriteCategory) }

// Handle builds one notification per reader following the category.
func (h *FavoriteCategoryHandler) Handle(ctx context.Context, repo TxRepository, article *domain.Article) ([]domain.Notification, error) {
	if article.Category == nil || article.Category.Slug == "" {
		return nil, nil
	}
	userIDs, err := repo.CategoryRecipients(ctx, article.Category.Slug)
	if err != nil {
		return nil, err
	}
	return build(h.renderer, domain.NotificationFavoriteCategory, article, userIDs)
}

// AuthorFollowHandler notifies followers of the article's author.
type AuthorFollowHandler struct {
	renderer *Renderer
}

// NewAuthorFollowHandler creates an AuthorFollowHandler.
func NewAuthorFollowHandler(renderer *Renderer) *AuthorFollowHandler {
	return &AuthorFollowHandler{renderer: renderer}
}

// Name returns the handler name.
func (h *AuthorFollowHandler) Name() string { return string(domain.NotificationAuthorFollow) }

// Handle builds one notification per follower.
func (h *AuthorFollowHandler) Handle(ctx context.Context, repo TxRepository, article *domain.Article) ([]domain.Notification, error) {
	userIDs, err := repo.AuthorFollowers(ctx, article.AuthorID)
	if err != nil {
		return nil, err
	}
	return build(h.renderer, domain.NotificationAuthorFollow, article, userIDs)
}

func build(renderer *Renderer, t domain.NotificationType, article *domain.Article, userIDs []string) ([]domain.Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	title, message, err := renderer.Render(t, MessageData{Article: article})
	if err != nil {
		return nil, err
	}

	articleID := article.ID
	notifications := make([]domain.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, domain.Notification{
			UserID:    userID,
			ArticleID: &articleID,
			Type:      t,
			Title:     title,
			Message:   message,
		})
	}
	return notifications, nil
}
