package tenants

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapflow/zapflow/internal/shared"
)

// Repository reads tenants.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Tenant, int, error)
	Get(ctx context.Context, id int64) (Tenant, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectTenant = `SELECT t.id, t.name, t.slug, t.plan, t.is_active,
    (SELECT count(*) FROM users u WHERE u.tenant_id = t.id) AS user_count,
    t.created_at, t.updated_at
FROM tenants t`

// List uses a hand-built query because the search filter is optional.
func (r *repository) List(ctx context.Context, filters ListFilters) ([]Tenant, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND (t.name ILIKE $1 OR t.slug ILIKE $1)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tenants t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("tenants: count: %w", err)
	}

	offset := (filters.Page - 1) * filters.PerPage
	if offset < 0 {
		offset = 0
	}
	n := len(args)
	query := selectTenant + where + ` ORDER BY t.name, t.id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, filters.PerPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("tenants: list: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanTenant)
	if err != nil {
		return nil, 0, fmt.Errorf("tenants: list: %w", err)
	}
	return list, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Tenant, error) {
	rows, err := r.pool.Query(ctx, selectTenant+` WHERE t.id = $1`, id)
	if err != nil {
		return Tenant{}, fmt.Errorf("tenants: get %d: %w", id, err)
	}
	tenant, err := pgx.CollectExactlyOneRow(rows, scanTenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, shared.ErrNotFound
	}
	if err != nil {
		return Tenant{}, fmt.Errorf("tenants: get %d: %w", id, err)
	}
	return tenant, nil
}

func scanTenant(row pgx.CollectableRow) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Plan, &t.IsActive, &t.UserCount, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
