package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bissquit/newsroom/internal/config"
	"github.com/bissquit/newsroom/internal/notifications"
	notificationspostgres "github.com/bissquit/newsroom/internal/notifications/postgres"
	"github.com/bissquit/newsroom/internal/notifications/webpush"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notificationsModule groups the notification components shared by the
// publish workflow, the HTTP handler and the digest job.
type notificationsModule struct {
	deliverer  *notifications.Deliverer
	dispatcher *notifications.Dispatcher
	digest     *notifications.Digest
	handler    *notifications.Handler
}

func newNotificationsModule(cfg *config.Config, db *pgxpool.Pool) (*notificationsModule, error) {
	repo := notificationspostgres.NewRepository(db)

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	var pusher notifications.Pusher
	vapidPublicKey := ""
	if cfg.Push.Enabled {
		sender, err := webpush.NewSender(webpush.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subject:         cfg.Push.VAPIDSubject,
			TTL:             cfg.Push.TTL,
			Timeout:         cfg.Push.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create push sender: %w", err)
		}
		pusher = sender
		vapidPublicKey = cfg.Push.VAPIDPublicKey
	} else {
		slog.Warn("push sender is disabled: notifications are stored in the inbox only")
	}

	deliverer := notifications.NewDeliverer(notifications.DefaultDeliveryConfig(), repo, pusher)
	dispatcher := notifications.NewDispatcher(repo, deliverer, cfg.Push.BaseURL, notifications.DefaultHandlers(renderer)...)
	digest := notifications.NewDigest(repo, renderer, deliverer, cfg.Push.BaseURL, cfg.Digest.Window, cfg.Digest.TopN)

	return &notificationsModule{
		deliverer:  deliverer,
		dispatcher: dispatcher,
		digest:     digest,
		handler:    notifications.NewHandler(notifications.NewService(repo, digest, vapidPublicKey)),
	}, nil
}

// RunDigest connects to the database and runs the daily digest once.
func RunDigest(ctx context.Context, cfg *config.Config) (*notifications.DigestResult, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	module, err := newNotificationsModule(cfg, db)
	if err != nil {
		return nil, err
	}
	return module.digest.Run(ctx)
}
