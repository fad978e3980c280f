// Package postgres provides PostgreSQL implementation of the notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/notifications"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository running on tx.
func (r *Repository) WithTx(tx pgx.Tx) notifications.TxRepository {
	return &txRepository{q: tx}
}

const notificationColumns = `id, user_id, article_id, type, title, message, is_read, created_at`

func scanNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	defer rows.Close()

	list := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ArticleID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return list, nil
}

// ListUnread returns the newest unread notifications of a user.
func (r *Repository) ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND NOT is_read
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return scanNotifications(rows)
}

// CountUnread counts unread notifications of a user.
func (r *Repository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// List returns a page of a user's notifications with the total count.
func (r *Repository) List(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	list, err := scanNotifications(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// MarkRead marks a notification owned by userID as read.
func (r *Repository) MarkRead(ctx context.Context, userID, id string) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns,
		id, userID,
	).Scan(&n.ID, &n.UserID, &n.ArticleID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &n, nil
}

// MarkAllRead marks every unread notification of a user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// CreateNotifications bulk-inserts notifications outside of a transaction.
func (r *Repository) CreateNotifications(ctx context.Context, list []domain.Notification) (int, error) {
	return insertNotifications(ctx, r.db, list)
}

// ListPushSubscriptions returns every endpoint registered by the given users.
func (r *Repository) ListPushSubscriptions(ctx context.Context, userIDs []string) ([]domain.PushSubscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = ANY($1::uuid[])
		ORDER BY created_at
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.PushSubscription, 0)
	for rows.Next() {
		var s domain.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push subscriptions: %w", err)
	}
	return subs, nil
}

// DeletePushEndpoint removes an endpoint regardless of owner.
func (r *Repository) DeletePushEndpoint(ctx context.Context, endpoint string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint); err != nil {
		return fmt.Errorf("delete push endpoint: %w", err)
	}
	return nil
}

// SavePushSubscription upserts an endpoint for its user.
func (r *Repository) SavePushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
		RETURNING id, created_at
	`, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

// DeletePushSubscription removes one of a user's endpoints.
func (r *Repository) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrSubscriptionNotFound
	}
	return nil
}

// ToggleNewsletter flips a newsletter subscription, creating it active on
// first use, and returns the resulting state.
func (r *Repository) ToggleNewsletter(ctx context.Context, userID string, t domain.NewsletterType) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `
		INSERT INTO newsletter_subscriptions (user_id, type, is_active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (user_id, type) DO UPDATE
		SET is_active = NOT newsletter_subscriptions.is_active
		RETURNING is_active
	`, userID, string(t)).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("toggle newsletter: %w", err)
	}
	return active, nil
}

// DigestRecipients returns users opted into the daily digest.
func (r *Repository) DigestRecipients(ctx context.Context) ([]string, error) {
	return collectIDs(ctx, r.db, "digest recipients", `
		SELECT u.id FROM users u
		WHERE u.preferences->>'dailyDigest' = 'true'
		UNION
		SELECT n.user_id FROM newsletter_subscriptions n
		WHERE n.type = $1 AND n.is_active
	`, string(domain.NewsletterGeneralDigest))
}

// TopArticlesSince returns the most viewed articles published after since.
func (r *Repository) TopArticlesSince(ctx context.Context, since time.Time, limit int) ([]domain.Article, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, author_id, title, views_count, published_at
		FROM articles
		WHERE status = 'published' AND published_at >= $1
		ORDER BY views_count DESC, published_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("top articles: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Article, 0)
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.AuthorID, &a.Title, &a.ViewsCount, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Status = domain.ArticleStatusPublished
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return list, nil
}

// txRepository runs fan-out queries on the publishing transaction.
type txRepository struct {
	q querier
}

// BreakingNewsRecipients returns users with the breakingNews preference.
func (r *txRepository) BreakingNewsRecipients(ctx context.Context) ([]string, error) {
	return collectIDs(ctx, r.q, "breaking news recipients",
		`SELECT id FROM users WHERE preferences->>'breakingNews' = 'true' ORDER BY id`)
}

// CategoryRecipients returns users whose favorite_categories contain slug.
func (r *txRepository) CategoryRecipients(ctx context.Context, categorySlug string) ([]string, error) {
	return collectIDs(ctx, r.q, "category recipients", `
		SELECT id FROM users
		WHERE jsonb_typeof(preferences->'favorite_categories') = 'array'
		  AND preferences->'favorite_categories' ? $1
		ORDER BY id
	`, categorySlug)
}

// AuthorFollowers returns users following an author.
func (r *txRepository) AuthorFollowers(ctx context.Context, authorID string) ([]string, error) {
	return collectIDs(ctx, r.q, "author followers",
		`SELECT user_id FROM author_followers WHERE author_id = $1 ORDER BY user_id`, authorID)
}

// InsertNotifications bulk-inserts notifications on the transaction.
func (r *txRepository) InsertNotifications(ctx context.Context, list []domain.Notification) (int, error) {
	return insertNotifications(ctx, r.q, list)
}

func insertNotifications(ctx context.Context, q querier, list []domain.Notification) (int, error) {
	if len(list) == 0 {
		return 0, nil
	}
	n, err := q.CopyFrom(ctx,
		pgx.Identifier{"notifications"},
		[]string{"user_id", "article_id", "type", "title", "message"},
		pgx.CopyFromSlice(len(list), func(i int) ([]any, error) {
			n := list[i]
			userID, err := uuidValue(&n.UserID)
			if err != nil {
				return nil, err
			}
			articleID, err := uuidValue(n.ArticleID)
			if err != nil {
				return nil, err
			}
			return []any{userID, articleID, string(n.Type), n.Title, n.Message}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("insert notifications: %w", err)
	}
	return int(n), nil
}

// uuidValue converts an optional id for the binary COPY protocol.
func uuidValue(id *string) (pgtype.UUID, error) {
	if id == nil {
		return pgtype.UUID{}, nil
	}
	parsed, err := uuid.Parse(*id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("parse id %q: %w", *id, err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func collectIDs(ctx context.Context, q querier, what, query string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return ids, nil
}
