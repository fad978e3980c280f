package app

import (
	"context"
	"errors"
	"strings"

	"github.com/bissquit/newsroom/internal/config"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/identity"
	identitypostgres "github.com/bissquit/newsroom/internal/identity/postgres"
)

// minAdminPassword matches the admin API password rule.
const minAdminPassword = 6

// CreateAdmin connects to the database and registers an administrator.
// Used to bootstrap the first admin account.
func CreateAdmin(ctx context.Context, cfg *config.Config, email, password string) (*domain.Admin, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("email is required")
	}
	if len(password) < minAdminPassword {
		return nil, errors.New("password must be at least 6 characters")
	}

	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	service := identity.NewService(identitypostgres.NewRepository(db), nil, nil)
	return service.CreateAdmin(ctx, email, password)
}
