// Command digest sends the daily digest once and exits.
// Intended for external schedulers when the in-process cron is disabled.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bissquit/newsroom/internal/app"
	"github.com/bissquit/newsroom/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.InitLogger(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := app.RunDigest(ctx, cfg)
	if err != nil {
		slog.Error("daily digest failed", "error", err)
		os.Exit(1)
	}

	slog.Info("daily digest done",
		"recipients", result.Recipients,
		"articles", result.TopArticles,
		"notifications", result.Notifications,
		"push_sent", result.Push.Sent,
		"push_failed", result.Push.Failed,
	)
}
