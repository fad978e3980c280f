package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
)

// Digest defaults.
const (
	DefaultDigestWindow = 24 * time.Hour
	DefaultDigestTopN   = 5
)

// DigestResult summarizes one digest run.
type DigestResult struct {
	Recipients    int           `json:"recipients"`
	TopArticles   int           `json:"top_articles"`
	Notifications int           `json:"notifications"`
	Push          DeliveryStats `json:"push"`
}

// Digest sends the daily digest: one notification per opted-in reader
// pointing at the most viewed recent article.
type Digest struct {
	repo      Repository
	renderer  *Renderer
	deliverer *Deliverer
	baseURL   string
	window    time.Duration
	topN      int
	now       func() time.Time
}

// NewDigest creates a digest job. Non-positive window or topN fall back to defaults.
func NewDigest(repo Repository, renderer *Renderer, deliverer *Deliverer, baseURL string, window time.Duration, topN int) *Digest {
	if window <= 0 {
		window = DefaultDigestWindow
	}
	if topN <= 0 {
		topN = DefaultDigestTopN
	}
	return &Digest{
		repo:      repo,
		renderer:  renderer,
		deliverer: deliverer,
		baseURL:   baseURL,
		window:    window,
		topN:      topN,
		now:       time.Now,
	}
}

// Run builds and sends the digest. Pushes are delivered before Run returns.
func (d *Digest) Run(ctx context.Context) (*DigestResult, error) {
	ctx = ctxlog.With(ctx, "job", "daily_digest")
	logger := ctxlog.FromContext(ctx)

	result, err := d.run(ctx)
	if err != nil {
		recordDigestRun("failed")
		logger.Error("daily digest failed", "error", err)
		return nil, err
	}
	if result.Notifications == 0 {
		recordDigestRun("skipped")
		logger.Info("daily digest skipped",
			"recipients", result.Recipients,
			"top_articles", result.TopArticles,
		)
		return result, nil
	}

	recordDigestRun("success")
	logger.Info("daily digest sent",
		"recipients", result.Recipients,
		"notifications", result.Notifications,
		"push_sent", result.Push.Sent,
	)
	return result, nil
}

func (d *Digest) run(ctx context.Context) (*DigestResult, error) {
	result := &DigestResult{}

	recipients, err := d.repo.DigestRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("digest recipients: %w", err)
	}
	result.Recipients = len(recipients)

	top, err := d.repo.TopArticlesSince(ctx, d.now().Add(-d.window), d.topN)
	if err != nil {
		return nil, fmt.Errorf("top articles: %w", err)
	}
	result.TopArticles = len(top)

	if len(recipients) == 0 || len(top) == 0 {
		return result, nil
	}

	headline := &top[0]
	title, message, err := d.renderer.Render(domain.NotificationDailyDigest, MessageData{
		Article: headline,
		More:    len(top) - 1,
	})
	if err != nil {
		return nil, err
	}

	articleID := headline.ID
	notes := make([]domain.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notes = append(notes, domain.Notification{
			UserID:    userID,
			ArticleID: &articleID,
			Type:      domain.NotificationDailyDigest,
			Title:     title,
			Message:   message,
		})
	}

	created, err := d.repo.CreateNotifications(ctx, notes)
	if err != nil {
		return nil, fmt.Errorf("create digest notifications: %w", err)
	}
	result.Notifications = created
	recordCreated(string(domain.NotificationDailyDigest), created)

	delivery := deliveryFor(string(domain.NotificationDailyDigest), notes, d.baseURL)
	result.Push = d.deliverer.Deliver(ctx, []domain.PushDelivery{delivery})
	return result, nil
}
