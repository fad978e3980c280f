// Package postgres provides PostgreSQL implementation of the subscriptions repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/postgres"
	"github.com/bissquit/newsroom/internal/subscriptions"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements subscriptions.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const planColumns = `id, name, description, price_per_month, permissions, created_at`

func scanPlan(row pgx.Row) (*domain.SubscriptionPlan, error) {
	var (
		plan  domain.SubscriptionPlan
		perms []byte
	)
	if err := row.Scan(&plan.ID, &plan.Name, &plan.Description, &plan.PricePerMonth, &perms, &plan.CreatedAt); err != nil {
		return nil, err
	}
	plan.Permissions = domain.Permissions{}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &plan.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return &plan, nil
}

// CreatePlan inserts a plan.
func (r *Repository) CreatePlan(ctx context.Context, plan *domain.SubscriptionPlan) error {
	perms, err := json.Marshal(plan.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}

	query := `
		INSERT INTO subscription_plans (name, description, price_per_month, permissions)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = r.db.QueryRow(ctx, query, plan.Name, plan.Description, plan.PricePerMonth, perms).
		Scan(&plan.ID, &plan.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return subscriptions.ErrPlanNameExists
		}
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// GetPlanByID retrieves a plan by ID.
func (r *Repository) GetPlanByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	plan, err := scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscriptions.ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan by id: %w", err)
	}
	return plan, nil
}

// GetPlanByName retrieves a plan by its unique name.
func (r *Repository) GetPlanByName(ctx context.Context, name string) (*domain.SubscriptionPlan, error) {
	plan, err := scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscriptions.ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan by name: %w", err)
	}
	return plan, nil
}

// ListPlans returns all plans ordered by price, then name.
func (r *Repository) ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY price_per_month, name`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]domain.SubscriptionPlan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

// UpdatePlan saves plan fields.
func (r *Repository) UpdatePlan(ctx context.Context, plan *domain.SubscriptionPlan) error {
	perms, err := json.Marshal(plan.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}

	result, err := r.db.Exec(ctx, `
		UPDATE subscription_plans
		SET name = $2, description = $3, price_per_month = $4, permissions = $5
		WHERE id = $1
	`, plan.ID, plan.Name, plan.Description, plan.PricePerMonth, perms)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return subscriptions.ErrPlanNameExists
		}
		return fmt.Errorf("update plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return subscriptions.ErrPlanNotFound
	}
	return nil
}

// DeletePlan removes a plan. Plans referenced by subscriptions cannot be deleted.
func (r *Repository) DeletePlan(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM subscription_plans WHERE id = $1`, id)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return subscriptions.ErrPlanInUse
		}
		return fmt.Errorf("delete plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return subscriptions.ErrPlanNotFound
	}
	return nil
}

// ReplaceActiveSubscription deactivates the current row and inserts sub in one
// transaction. The partial unique index on active rows guards against races.
func (r *Repository) ReplaceActiveSubscription(ctx context.Context, sub *domain.UserSubscription) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		// Lock the user's rows so concurrent subscribes serialize.
		if _, err := tx.Exec(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, sub.UserID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		_, err := tx.Exec(ctx, `
			UPDATE user_subscription_plans
			SET is_active = false, end_date = NOW()
			WHERE user_id = $1 AND is_active
		`, sub.UserID)
		if err != nil {
			return fmt.Errorf("deactivate subscription: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO user_subscription_plans (user_id, plan_id, is_active)
			VALUES ($1, $2, true)
			RETURNING id, start_date
		`, sub.UserID, sub.PlanID).Scan(&sub.ID, &sub.StartDate)
		if err != nil {
			if postgres.ConstraintName(err) == "user_subscription_plans_plan_id_fkey" {
				return subscriptions.ErrPlanNotFound
			}
			return fmt.Errorf("insert subscription: %w", err)
		}
		sub.IsActive = true
		return nil
	})
}

const subscriptionSelect = `
	SELECT s.id, s.user_id, s.plan_id, s.start_date, s.end_date, s.is_active,
	       p.id, p.name, p.description, p.price_per_month, p.permissions, p.created_at
	FROM user_subscription_plans s
	JOIN subscription_plans p ON p.id = s.plan_id
`

func scanSubscription(row pgx.Row) (*domain.UserSubscription, error) {
	var (
		sub   domain.UserSubscription
		plan  domain.SubscriptionPlan
		perms []byte
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.StartDate, &sub.EndDate, &sub.IsActive,
		&plan.ID, &plan.Name, &plan.Description, &plan.PricePerMonth, &perms, &plan.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	plan.Permissions = domain.Permissions{}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &plan.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	sub.Plan = &plan
	return &sub, nil
}

// GetActiveSubscription returns the user's active subscription with its plan.
func (r *Repository) GetActiveSubscription(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx, subscriptionSelect+` WHERE s.user_id = $1 AND s.is_active`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscriptions.ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptionHistory returns every subscription of the user, newest first.
func (r *Repository) ListSubscriptionHistory(ctx context.Context, userID string) ([]domain.UserSubscription, error) {
	rows, err := r.db.Query(ctx, subscriptionSelect+` WHERE s.user_id = $1 ORDER BY s.start_date DESC, s.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscription history: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.UserSubscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}
