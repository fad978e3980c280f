package subscriptions

import (
	"context"

	"github.com/bissquit/newsroom/internal/domain"
)

// Repository defines the interface for plan and subscription storage.
type Repository interface {
	CreatePlan(ctx context.Context, plan *domain.SubscriptionPlan) error
	GetPlanByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error)
	GetPlanByName(ctx context.Context, name string) (*domain.SubscriptionPlan, error)
	ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error)
	UpdatePlan(ctx context.Context, plan *domain.SubscriptionPlan) error
	DeletePlan(ctx context.Context, id string) error

	// ReplaceActiveSubscription deactivates the user's active row and inserts
	// sub as the new active row, atomically.
	ReplaceActiveSubscription(ctx context.Context, sub *domain.UserSubscription) error
	GetActiveSubscription(ctx context.Context, userID string) (*domain.UserSubscription, error)
	ListSubscriptionHistory(ctx context.Context, userID string) ([]domain.UserSubscription, error)
}
