package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	plans   map[string]*domain.SubscriptionPlan
	subs    []*domain.UserSubscription
	nextID  int
	listErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{plans: make(map[string]*domain.SubscriptionPlan)}
}

func (m *mockRepository) id() string {
	m.nextID++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", m.nextID)
}

func (m *mockRepository) CreatePlan(_ context.Context, plan *domain.SubscriptionPlan) error {
	for _, p := range m.plans {
		if p.Name == plan.Name {
			return ErrPlanNameExists
		}
	}
	plan.ID = m.id()
	m.plans[plan.ID] = plan
	return nil
}

func (m *mockRepository) GetPlanByID(_ context.Context, id string) (*domain.SubscriptionPlan, error) {
	if p, ok := m.plans[id]; ok {
		return p, nil
	}
	return nil, ErrPlanNotFound
}

func (m *mockRepository) GetPlanByName(_ context.Context, name string) (*domain.SubscriptionPlan, error) {
	for _, p := range m.plans {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (m *mockRepository) ListPlans(_ context.Context) ([]domain.SubscriptionPlan, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	plans := make([]domain.SubscriptionPlan, 0, len(m.plans))
	for _, p := range m.plans {
		plans = append(plans, *p)
	}
	return plans, nil
}

func (m *mockRepository) UpdatePlan(_ context.Context, plan *domain.SubscriptionPlan) error {
	m.plans[plan.ID] = plan
	return nil
}

func (m *mockRepository) DeletePlan(_ context.Context, id string) error {
	for _, s := range m.subs {
		if s.PlanID == id {
			return ErrPlanInUse
		}
	}
	delete(m.plans, id)
	return nil
}

func (m *mockRepository) ReplaceActiveSubscription(_ context.Context, sub *domain.UserSubscription) error {
	for _, s := range m.subs {
		if s.UserID == sub.UserID && s.IsActive {
			s.IsActive = false
		}
	}
	sub.ID = m.id()
	sub.IsActive = true
	m.subs = append(m.subs, sub)
	return nil
}

func (m *mockRepository) GetActiveSubscription(_ context.Context, userID string) (*domain.UserSubscription, error) {
	for _, s := range m.subs {
		if s.UserID == userID && s.IsActive {
			cp := *s
			cp.Plan = m.plans[s.PlanID]
			return &cp, nil
		}
	}
	return nil, ErrNoActiveSubscription
}

func (m *mockRepository) ListSubscriptionHistory(_ context.Context, userID string) ([]domain.UserSubscription, error) {
	out := make([]domain.UserSubscription, 0)
	for i := len(m.subs) - 1; i >= 0; i-- {
		if m.subs[i].UserID == userID {
			out = append(out, *m.subs[i])
		}
	}
	return out, nil
}

func (m *mockRepository) activeCount(userID string) int {
	n := 0
	for _, s := range m.subs {
		if s.UserID == userID && s.IsActive {
			n++
		}
	}
	return n
}

func seedPlans(t *testing.T, s *Service) (free, premium *domain.SubscriptionPlan) {
	t.Helper()
	free, err := s.CreatePlan(context.Background(), PlanInput{Name: "Free"})
	require.NoError(t, err)
	premium, err = s.CreatePlan(context.Background(), PlanInput{
		Name:          "Premium",
		PricePerMonth: 9.99,
		Permissions: domain.Permissions{
			domain.PermissionNoAds:            true,
			domain.PermissionExclusiveContent: true,
			domain.PermissionSaveArticle:      true,
			domain.PermissionComment:          true,
		},
	})
	require.NoError(t, err)
	return free, premium
}

func TestSubscribe_DeactivatesPrevious(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, "Free")
	free, premium := seedPlans(t, service)
	ctx := context.Background()

	// Act
	_, err := service.Subscribe(ctx, "user-1", free.ID)
	require.NoError(t, err)
	sub, err := service.Subscribe(ctx, "user-1", premium.ID)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, repo.activeCount("user-1"))
	current, err := service.Current(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, current.ID)
	assert.Equal(t, "Premium", current.Plan.Name)

	history, err := service.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, premium.ID, history[0].PlanID)
	assert.False(t, history[1].IsActive)
}

func TestSubscribe_UnknownPlan(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, "Free")

	_, err := service.Subscribe(context.Background(), "user-1", "missing")

	assert.ErrorIs(t, err, ErrPlanNotFound)
	assert.Empty(t, repo.subs)
}

func TestPermissionsFor(t *testing.T) {
	service := NewService(newMockRepository(), "Free")
	free, premium := seedPlans(t, service)
	ctx := context.Background()

	_, err := service.Subscribe(ctx, "free-user", free.ID)
	require.NoError(t, err)
	_, err = service.Subscribe(ctx, "premium-user", premium.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID string
		want   domain.Permissions
	}{
		{name: "no subscription", userID: "nobody", want: domain.Permissions{}},
		{
			name:   "free plan",
			userID: "free-user",
			want: domain.Permissions{
				domain.PermissionNoAds:            false,
				domain.PermissionExclusiveContent: false,
				domain.PermissionSaveArticle:      false,
				domain.PermissionComment:          false,
			},
		},
		{name: "premium plan", userID: "premium-user", want: domain.FullPermissions()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.PermissionsFor(ctx, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOnUserCreated_SubscribesToDefaultPlan(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, "Free")
	free, _ := seedPlans(t, service)

	err := service.OnUserCreated(context.Background(), &domain.User{ID: "user-1"})

	require.NoError(t, err)
	sub, err := service.Current(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, free.ID, sub.PlanID)
}

func TestOnUserCreated_MissingPlan(t *testing.T) {
	service := NewService(newMockRepository(), "Free")

	err := service.OnUserCreated(context.Background(), &domain.User{ID: "user-1"})

	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestActiveSubscription_NilWhenNone(t *testing.T) {
	service := NewService(newMockRepository(), "Free")

	sub, err := service.ActiveSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, sub)

	_, err = service.Current(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestCreatePlan_Validation(t *testing.T) {
	service := NewService(newMockRepository(), "Free")

	_, err := service.CreatePlan(context.Background(), PlanInput{
		Name:        "Odd",
		Permissions: domain.Permissions{"teleport": true},
	})
	assert.ErrorIs(t, err, ErrUnknownPermission)

	plan, err := service.CreatePlan(context.Background(), PlanInput{
		Name:        " Reader ",
		Permissions: domain.Permissions{domain.PermissionComment: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Reader", plan.Name)
	assert.Len(t, plan.Permissions, len(domain.AllPermissions()))
	assert.True(t, plan.Permissions.Has(domain.PermissionComment))
}

func TestDeletePlan_InUse(t *testing.T) {
	service := NewService(newMockRepository(), "Free")
	free, _ := seedPlans(t, service)
	_, err := service.Subscribe(context.Background(), "user-1", free.ID)
	require.NoError(t, err)

	err = service.DeletePlan(context.Background(), free.ID)

	assert.ErrorIs(t, err, ErrPlanInUse)
}

func TestListPlans_Error(t *testing.T) {
	repo := newMockRepository()
	repo.listErr = errors.New("db down")
	service := NewService(repo, "Free")

	_, err := service.ListPlans(context.Background())

	assert.Error(t, err)
}
