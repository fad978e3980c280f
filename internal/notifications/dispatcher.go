package notifications

import (
	"context"
	"fmt"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/jackc/pgx/v5"
)

// Dispatcher runs the publish fan-out and hands the resulting pushes to the
// deliverer.
type Dispatcher struct {
	repo      Repository
	deliverer *Deliverer
	baseURL   string
	handlers  []PublishHandler
}

// NewDispatcher creates a new publish dispatcher. Handlers run in the given order.
func NewDispatcher(repo Repository, deliverer *Deliverer, baseURL string, handlers ...PublishHandler) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		deliverer: deliverer,
		baseURL:   baseURL,
		handlers:  handlers,
	}
}

// OnArticlePublished runs every handler inside its own savepoint of tx. A
// failing handler is rolled back and recorded in the report; the remaining
// handlers still run.
func (d *Dispatcher) OnArticlePublished(ctx context.Context, tx pgx.Tx, article *domain.Article) (*domain.PublishReport, error) {
	logger := ctxlog.FromContext(ctx).With("article_id", article.ID)
	report := &domain.PublishReport{ArticleID: article.ID}

	for _, h := range d.handlers {
		result := domain.PublishHandlerResult{Handler: h.Name()}

		created, notes, err := d.runHandler(ctx, tx, h, article)
		recordHandlerRun(h.Name(), err)
		if err != nil {
			logger.Error("publish handler failed", "handler", h.Name(), "error", err)
			result.Error = err.Error()
			report.Handlers = append(report.Handlers, result)
			continue
		}

		result.Created = created
		report.Handlers = append(report.Handlers, result)
		if created > 0 {
			recordCreated(h.Name(), created)
			report.Deliveries = append(report.Deliveries, deliveryFor(h.Name(), notes, d.baseURL))
		}
	}

	logger.Info("publish fan-out finished",
		"created", report.Created(),
		"failed_handlers", report.Failed(),
	)
	return report, nil
}

func (d *Dispatcher) runHandler(ctx context.Context, tx pgx.Tx, h PublishHandler, article *domain.Article) (int, []domain.Notification, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("begin savepoint: %w", err)
	}
	defer func() {
		_ = sp.Rollback(ctx)
	}()

	repo := d.repo.WithTx(sp)
	notes, err := h.Handle(ctx, repo, article)
	if err != nil {
		return 0, nil, err
	}

	created := 0
	if len(notes) > 0 {
		if created, err = repo.InsertNotifications(ctx, notes); err != nil {
			return 0, nil, fmt.Errorf("insert notifications: %w", err)
		}
	}

	if err := sp.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("release savepoint: %w", err)
	}
	return created, notes, nil
}

// Deliver starts pushing the report's deliveries to subscribed browsers and
// returns without waiting. Deliverer.Stop waits for the pushes to finish.
func (d *Dispatcher) Deliver(ctx context.Context, report *domain.PublishReport) {
	if report == nil || len(report.Deliveries) == 0 {
		return
	}
	ctx = ctxlog.With(ctx, "article_id", report.ArticleID)
	d.deliverer.Go(ctx, report.Deliveries)
}
