package identity

import (
	"context"

	"github.com/bissquit/newsroom/internal/domain"
)

// Repository defines the interface for account storage.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]domain.User, int, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	UpdatePreferences(ctx context.Context, userID string, prefs domain.Preferences) error
	DeleteUser(ctx context.Context, id string) error

	CreateAdmin(ctx context.Context, admin *domain.Admin) error
	GetAdminByID(ctx context.Context, id string) (*domain.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*domain.Admin, error)
	ListAdmins(ctx context.Context) ([]domain.Admin, error)
	UpdateAdmin(ctx context.Context, admin *domain.Admin) error
	UpdateAdminPassword(ctx context.Context, id, passwordHash string) error
	DeleteAdmin(ctx context.Context, id string) error
}

// UserFilter represents filter criteria for listing users.
type UserFilter struct {
	Search string
	Limit  int
	Offset int
}
