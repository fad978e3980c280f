// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/identity"
	"github.com/bissquit/newsroom/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, username, password_hash, preferences, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user  domain.User
		prefs []byte
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.Password,
		&prefs,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Preferences = domain.Preferences{}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &user.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return &user, nil
}

// CreateUser inserts a reader.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	query := `
		INSERT INTO users (email, username, password_hash, preferences)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query, user.Email, user.Username, user.Password, prefs).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapUserError("create user", err)
	}
	return nil
}

// GetUserByID retrieves a reader by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a reader by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// ListUsers returns readers matching the filter, newest first, and the total count.
func (r *Repository) ListUsers(ctx context.Context, filter identity.UserFilter) ([]domain.User, int, error) {
	where := ""
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = ` WHERE email ILIKE $1 OR username ILIKE $1`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

// UpdateUser saves email, username and preferences.
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	query := `
		UPDATE users
		SET email = $2, username = $3, preferences = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRow(ctx, query, user.ID, user.Email, user.Username, prefs).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.ErrUserNotFound
		}
		return mapUserError("update user", err)
	}
	return nil
}

// UpdatePreferences replaces the reader's preferences.
func (r *Repository) UpdatePreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	result, err := r.db.Exec(ctx,
		`UPDATE users SET preferences = $2, updated_at = NOW() WHERE id = $1`,
		userID, data,
	)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a reader.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// CreateAdmin inserts an administrator.
func (r *Repository) CreateAdmin(ctx context.Context, admin *domain.Admin) error {
	query := `
		INSERT INTO admins (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, admin.Email, admin.Password).Scan(&admin.ID, &admin.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return identity.ErrEmailExists
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// GetAdminByID retrieves an administrator by ID.
func (r *Repository) GetAdminByID(ctx context.Context, id string) (*domain.Admin, error) {
	return r.getAdmin(ctx, "id", id)
}

// GetAdminByEmail retrieves an administrator by email.
func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	return r.getAdmin(ctx, "email", email)
}

func (r *Repository) getAdmin(ctx context.Context, column, value string) (*domain.Admin, error) {
	query := `SELECT id, email, password_hash, created_at FROM admins WHERE ` + column + ` = $1`
	var admin domain.Admin
	err := r.db.QueryRow(ctx, query, value).Scan(&admin.ID, &admin.Email, &admin.Password, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin by %s: %w", column, err)
	}
	return &admin, nil
}

// ListAdmins returns all administrators ordered by email.
func (r *Repository) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	rows, err := r.db.Query(ctx, `SELECT id, email, password_hash, created_at FROM admins ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	admins := make([]domain.Admin, 0)
	for rows.Next() {
		var admin domain.Admin
		if err := rows.Scan(&admin.ID, &admin.Email, &admin.Password, &admin.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return admins, nil
}

// UpdateAdmin saves the administrator's email.
func (r *Repository) UpdateAdmin(ctx context.Context, admin *domain.Admin) error {
	result, err := r.db.Exec(ctx, `UPDATE admins SET email = $2 WHERE id = $1`, admin.ID, admin.Email)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return identity.ErrEmailExists
		}
		return fmt.Errorf("update admin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrAdminNotFound
	}
	return nil
}

// UpdateAdminPassword stores a new password hash.
func (r *Repository) UpdateAdminPassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.Exec(ctx, `UPDATE admins SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrAdminNotFound
	}
	return nil
}

// DeleteAdmin removes an administrator.
func (r *Repository) DeleteAdmin(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrAdminNotFound
	}
	return nil
}

func mapUserError(op string, err error) error {
	if postgres.IsUniqueViolation(err) {
		switch postgres.ConstraintName(err) {
		case "users_username_key":
			return identity.ErrUsernameExists
		default:
			return identity.ErrEmailExists
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
