package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/shared"
)

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindActiveByID(ctx context.Context, id int64) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

const userColumns = `id, email, name, password_hash, role, tenant_id, is_active, token_version, created_at, updated_at`

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// FindActiveByID fetches an active user by id.
func (r *PGRepository) FindActiveByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active`, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user User
		role string
	)
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &role, &user.TenantID,
		&user.IsActive, &user.TokenVersion, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: scan user: %w", err)
	}
	// Unknown stored roles stay as-is and resolve to no permissions.
	user.Role = rbac.Role(role)
	if parsed, ok := rbac.ParseRole(role); ok {
		user.Role = parsed
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
