// Package subscriptions manages plans, user subscriptions and the permissions
// they grant.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
)

// Service implements subscription business logic.
type Service struct {
	repo            Repository
	defaultPlanName string
}

// NewService creates a new subscriptions service. defaultPlanName is the plan
// new readers are subscribed to.
func NewService(repo Repository, defaultPlanName string) *Service {
	return &Service{repo: repo, defaultPlanName: defaultPlanName}
}

// PlanInput contains plan data for create and update.
type PlanInput struct {
	Name          string
	Description   string
	PricePerMonth float64
	Permissions   domain.Permissions
}

func (in PlanInput) validate() error {
	for p := range in.Permissions {
		if !p.IsValid() {
			return fmt.Errorf("%w: %s", ErrUnknownPermission, p)
		}
	}
	return nil
}

// ListPlans returns all plans ordered by price.
func (s *Service) ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	return s.repo.ListPlans(ctx)
}

// GetPlan retrieves a plan by ID.
func (s *Service) GetPlan(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	return s.repo.GetPlanByID(ctx, id)
}

// CreatePlan creates a new plan.
func (s *Service) CreatePlan(ctx context.Context, input PlanInput) (*domain.SubscriptionPlan, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	plan := &domain.SubscriptionPlan{
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		PricePerMonth: input.PricePerMonth,
		Permissions:   normalizePermissions(input.Permissions),
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlan replaces a plan's fields.
func (s *Service) UpdatePlan(ctx context.Context, id string, input PlanInput) (*domain.SubscriptionPlan, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	plan, err := s.repo.GetPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}

	plan.Name = strings.TrimSpace(input.Name)
	plan.Description = input.Description
	plan.PricePerMonth = input.PricePerMonth
	plan.Permissions = normalizePermissions(input.Permissions)

	if err := s.repo.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// DeletePlan removes a plan that nobody has ever subscribed to.
func (s *Service) DeletePlan(ctx context.Context, id string) error {
	return s.repo.DeletePlan(ctx, id)
}

// Subscribe switches the user to planID. The previous active subscription, if
// any, is deactivated in the same transaction.
func (s *Service) Subscribe(ctx context.Context, userID, planID string) (*domain.UserSubscription, error) {
	plan, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	sub := &domain.UserSubscription{
		UserID:   userID,
		PlanID:   plan.ID,
		IsActive: true,
	}
	if err := s.repo.ReplaceActiveSubscription(ctx, sub); err != nil {
		return nil, err
	}
	sub.Plan = plan

	ctxlog.FromContext(ctx).Info("user subscribed",
		"user_id", userID,
		"plan", plan.Name,
	)
	return sub, nil
}

// Current returns the user's active subscription or ErrNoActiveSubscription.
func (s *Service) Current(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	return s.repo.GetActiveSubscription(ctx, userID)
}

// ActiveSubscription is like Current but returns nil when the user has no
// active subscription.
func (s *Service) ActiveSubscription(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	sub, err := s.repo.GetActiveSubscription(ctx, userID)
	if errors.Is(err, ErrNoActiveSubscription) {
		return nil, nil
	}
	return sub, err
}

// History returns every subscription of the user, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]domain.UserSubscription, error) {
	return s.repo.ListSubscriptionHistory(ctx, userID)
}

// PermissionsFor returns the permissions of the user's active plan. Users
// without a plan get an empty set.
func (s *Service) PermissionsFor(ctx context.Context, userID string) (domain.Permissions, error) {
	sub, err := s.ActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.Plan == nil {
		return domain.Permissions{}, nil
	}
	return sub.Plan.Permissions, nil
}

// OnUserCreated subscribes a newly registered reader to the default plan.
func (s *Service) OnUserCreated(ctx context.Context, user *domain.User) error {
	if s.defaultPlanName == "" {
		return nil
	}

	plan, err := s.repo.GetPlanByName(ctx, s.defaultPlanName)
	if err != nil {
		return fmt.Errorf("find default plan %q: %w", s.defaultPlanName, err)
	}

	if _, err := s.Subscribe(ctx, user.ID, plan.ID); err != nil {
		return fmt.Errorf("subscribe to default plan: %w", err)
	}
	return nil
}

// normalizePermissions returns a map with every known permission present.
func normalizePermissions(in domain.Permissions) domain.Permissions {
	out := make(domain.Permissions, len(domain.AllPermissions()))
	for _, p := range domain.AllPermissions() {
		out[p] = in[p]
	}
	return out
}
