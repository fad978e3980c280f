package notifications

import (
	"strings"

	"github.com/bissquit/newsroom/internal/domain"
)

// NewPushPayload builds the push document for a notification. The URL points
// at the article when there is one.
func NewPushPayload(n domain.Notification, baseURL string) domain.PushPayload {
	payload := domain.PushPayload{Title: n.Title, Body: n.Message, URL: "/"}
	if n.ArticleID != nil {
		payload.URL = ArticleURL(baseURL, *n.ArticleID)
	}
	return payload
}

// ArticleURL returns the reader-facing URL of an article.
func ArticleURL(baseURL, articleID string) string {
	return strings.TrimRight(baseURL, "/") + "/articles/" + articleID
}

// deliveryFor groups notifications of one handler into a push delivery.
// Handlers render the same title and message for every recipient.
func deliveryFor(handler string, notifications []domain.Notification, baseURL string) domain.PushDelivery {
	userIDs := make([]string, 0, len(notifications))
	seen := make(map[string]bool, len(notifications))
	for _, n := range notifications {
		if seen[n.UserID] {
			continue
		}
		seen[n.UserID] = true
		userIDs = append(userIDs, n.UserID)
	}
	return domain.PushDelivery{
		Handler: handler,
		UserIDs: userIDs,
		Payload: NewPushPayload(notifications[0], baseURL),
	}
}
