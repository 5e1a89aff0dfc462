package auth

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/shared"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type stubQuerier struct {
	row  stubRow
	sql  string
	args []any
}

func (q *stubQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.sql = sql
	q.args = args
	return q.row
}

func TestRepositoryScansUser(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := &stubQuerier{row: stubRow{values: []any{
		int64(10), "op@t1.example", "Operator", "hash", " Operador ", tenantRef(1), true, int64(4), created, created,
	}}}
	repo := NewRepository(q)

	user, err := repo.FindByEmail(context.Background(), " OP@t1.example ")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleOperator, user.Role)
	assert.Equal(t, int64(1), *user.TenantID)
	assert.Equal(t, int64(4), user.TokenVersion)
	assert.Equal(t, []any{"op@t1.example"}, q.args)
}

func TestRepositoryMapsNoRows(t *testing.T) {
	repo := NewRepository(&stubQuerier{row: stubRow{err: pgx.ErrNoRows}})

	_, err := repo.FindActiveByID(context.Background(), 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRepositoryWrapsOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	q := &stubQuerier{row: stubRow{err: boom}}
	repo := NewRepository(q)

	_, err := repo.FindActiveByID(context.Background(), 3)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
	assert.Contains(t, q.sql, "is_active")
	assert.Equal(t, []any{int64(3)}, q.args)
}
