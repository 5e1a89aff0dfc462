package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapflow/zapflow/internal/platform/db"
	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUser = `SELECT id, email, name, role, tenant_id, is_active, token_version, created_at, updated_at FROM users`

// ListByTenant returns a page of the tenant's users and the tenant total,
// read from one snapshot.
func (r *Repository) ListByTenant(ctx context.Context, tenantID int64, limit, offset int) (Page, error) {
	var page Page
	err := db.WithTx(ctx, r.pool, db.ReadSnapshot, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM users WHERE tenant_id = $1`, tenantID).Scan(&page.Total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, selectUser+` WHERE tenant_id = $1 ORDER BY id LIMIT $2 OFFSET $3`, tenantID, limit, offset)
		if err != nil {
			return err
		}
		page.Users, err = pgx.CollectRows(rows, scanUser)
		return err
	})
	if err != nil {
		return Page{}, fmt.Errorf("users: list tenant %d: %w", tenantID, err)
	}
	return page, nil
}

// FindByID fetches any user, active or not.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	rows, err := r.pool.Query(ctx, selectUser+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("users: find %d: %w", id, err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: find %d: %w", id, err)
	}
	return &user, nil
}

// Create inserts a new active user.
func (r *Repository) Create(ctx context.Context, in NewUser) (*User, error) {
	rows, err := r.pool.Query(ctx, `INSERT INTO users (email, name, password_hash, role, tenant_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, email, name, role, tenant_id, is_active, token_version, created_at, updated_at`,
		strings.ToLower(strings.TrimSpace(in.Email)), in.Name, in.PasswordHash, string(in.Role), in.TenantID)
	if err != nil {
		return nil, mapWriteError(err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &user, nil
}

// UpdateRole sets the role, optionally detaching the tenant, and bumps the
// token version so outstanding tokens stop verifying.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role rbac.Role, clearTenant bool) (*User, error) {
	return r.update(ctx, `UPDATE users SET role = $2,
    tenant_id = CASE WHEN $3 THEN NULL ELSE tenant_id END,
    token_version = token_version + 1, updated_at = now()
WHERE id = $1
RETURNING id, email, name, role, tenant_id, is_active, token_version, created_at, updated_at`, id, string(role), clearTenant)
}

// Deactivate marks the user inactive and bumps the token version.
func (r *Repository) Deactivate(ctx context.Context, id int64) (*User, error) {
	return r.update(ctx, `UPDATE users SET is_active = FALSE,
    token_version = token_version + 1, updated_at = now()
WHERE id = $1
RETURNING id, email, name, role, tenant_id, is_active, token_version, created_at, updated_at`, id)
}

func (r *Repository) update(ctx context.Context, sql string, args ...any) (*User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapWriteError(err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &user, nil
}

func scanUser(row pgx.CollectableRow) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.TenantID, &u.IsActive, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	u.Role = rbac.Role(role)
	return u, err
}

func mapWriteError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return fmt.Errorf("users: write: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ RepositoryPort = (*Repository)(nil)
