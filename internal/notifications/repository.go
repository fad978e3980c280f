// Package notifications provides the reader inbox, Web Push delivery, the
// publish fan-out and the daily digest.
package notifications

import (
	"context"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for notifications data access.
type Repository interface {
	// WithTx returns a repository bound to tx for the publish fan-out.
	WithTx(tx pgx.Tx) TxRepository

	// Inbox
	ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, int, error)
	MarkRead(ctx context.Context, userID, id string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CreateNotifications(ctx context.Context, notifications []domain.Notification) (int, error)

	PushStore

	// SavePushSubscription registers an endpoint. An endpoint already known
	// moves to the new owner and keys.
	SavePushSubscription(ctx context.Context, sub *domain.PushSubscription) error
	DeletePushSubscription(ctx context.Context, userID, endpoint string) error

	ToggleNewsletter(ctx context.Context, userID string, t domain.NewsletterType) (bool, error)

	// DigestRecipients returns users opted into the daily digest by preference
	// or by an active general_digest newsletter subscription.
	DigestRecipients(ctx context.Context) ([]string, error)
	TopArticlesSince(ctx context.Context, since time.Time, limit int) ([]domain.Article, error)
}

// PushStore is the subset of the repository push delivery needs.
type PushStore interface {
	ListPushSubscriptions(ctx context.Context, userIDs []string) ([]domain.PushSubscription, error)
	DeletePushEndpoint(ctx context.Context, endpoint string) error
}

// TxRepository runs recipient lookups and inserts inside the publishing transaction.
type TxRepository interface {
	BreakingNewsRecipients(ctx context.Context) ([]string, error)
	CategoryRecipients(ctx context.Context, categorySlug string) ([]string, error)
	AuthorFollowers(ctx context.Context, authorID string) ([]string, error)
	InsertNotifications(ctx context.Context, notifications []domain.Notification) (int, error)
}
