// Command admin creates an administrator account.
//
//	admin -email admin@example.com -password secret
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/bissquit/newsroom/internal/app"
	"github.com/bissquit/newsroom/internal/config"
)

func main() {
	email := flag.String("email", os.Getenv("NEWSROOM_ADMIN_EMAIL"), "admin email")
	password := flag.String("password", os.Getenv("NEWSROOM_ADMIN_PASSWORD"), "admin password (min 6 chars)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.InitLogger(cfg.Log))

	admin, err := app.CreateAdmin(context.Background(), cfg, *email, *password)
	if err != nil {
		slog.Error("create admin", "error", err)
		os.Exit(1)
	}
	slog.Info("admin created", "id", admin.ID, "email", admin.Email)
}
