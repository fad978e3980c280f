package domain

import "time"

// NotificationType identifies what triggered a notification.
type NotificationType string

// Notification types.
const (
	NotificationBreakingNews     NotificationType = "breaking_news"
	NotificationFavoriteCategory NotificationType = "favorite_category"
	NotificationAuthorFollow     NotificationType = "author_follow"
	NotificationDailyDigest      NotificationType = "daily_digest"
)

// Notification is an inbox entry for a user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	ArticleID *string          `json:"article_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// PushSubscription is a browser Web Push endpoint registered by a user.
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

// NewsletterType names a newsletter a user can opt into.
type NewsletterType string

// Newsletter types.
const (
	NewsletterGeneralDigest NewsletterType = "general_digest"
)

// NewsletterSubscription records a user's opt-in to a newsletter.
type NewsletterSubscription struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      NewsletterType `json:"type"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
}

// PushPayload is the JSON document delivered to a push endpoint.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// PushDelivery is a payload addressed to a set of users.
type PushDelivery struct {
	Handler string
	UserIDs []string
	Payload PushPayload
}

// PublishHandlerResult is the outcome of one fan-out handler for one article.
type PublishHandlerResult struct {
	Handler string `json:"handler"`
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

// PublishReport aggregates what the fan-out did for a published article.
type PublishReport struct {
	ArticleID  string                 `json:"article_id"`
	Handlers   []PublishHandlerResult `json:"handlers"`
	Deliveries []PushDelivery         `json:"-"`
}

// Created returns the total number of notifications persisted.
func (r *PublishReport) Created() int {
	n := 0
	for _, h := range r.Handlers {
		n += h.Created
	}
	return n
}

// Failed returns the handlers that reported an error.
func (r *PublishReport) Failed() []string {
	var names []string
	for _, h := range r.Handlers {
		if h.Error != "" {
			names = append(names, h.Handler)
		}
	}
	return names
}
