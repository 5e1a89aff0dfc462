package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/shared"
)

type stubRepo struct {
	tenants []Tenant
	filters ListFilters
	err     error
}

func (r *stubRepo) List(ctx context.Context, filters ListFilters) ([]Tenant, int, error) {
	r.filters = filters
	if r.err != nil {
		return nil, 0, r.err
	}
	return r.tenants, len(r.tenants), nil
}

func (r *stubRepo) Get(ctx context.Context, id int64) (Tenant, error) {
	for _, t := range r.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return Tenant{}, shared.ErrNotFound
}

func tenantID(id int64) *int64 { return &id }

func newRouter(repo Repository, actor *rbac.AuthenticatedUser) http.Handler {
	inject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(rbac.ContextWithUser(r.Context(), actor)))
		})
	}
	h := NewHandler(nil, NewService(repo), rbac.Middleware{Matrix: rbac.DefaultMatrix()}, inject)
	r := chi.NewRouter()
	r.Route("/api", h.MountRoutes)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func seed() *stubRepo {
	return &stubRepo{tenants: []Tenant{
		{ID: 1, Name: "Acme", Slug: "acme", Plan: "pro", IsActive: true, UserCount: 4},
		{ID: 2, Name: "Globex", Slug: "globex", Plan: "starter", IsActive: true, UserCount: 1},
	}}
}

func TestListRequiresSuperAdmin(t *testing.T) {
	repo := seed()
	rec := get(newRouter(repo, &rbac.AuthenticatedUser{ID: 1, Role: rbac.RoleAdmin, TenantID: tenantID(1)}), "/api/tenants")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), rbac.CodeSuperAdminRequired)

	rec = get(newRouter(repo, &rbac.AuthenticatedUser{ID: 9, Role: rbac.RoleSuperAdmin}), "/api/tenants?search=%20ac%20&per_page=500")
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data listResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Len(t, env.Data.Tenants, 2)
	assert.Equal(t, 2, env.Data.Pagination.Total)
	assert.Equal(t, "ac", repo.filters.Search)
	assert.Equal(t, 100, repo.filters.PerPage)
}

func TestShowScopedToMembers(t *testing.T) {
	repo := seed()
	admin := &rbac.AuthenticatedUser{ID: 1, Role: rbac.RoleAdmin, TenantID: tenantID(1)}

	rec := get(newRouter(repo, admin), "/api/tenants/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"acme"`)

	rec = get(newRouter(repo, admin), "/api/tenants/2")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	operator := &rbac.AuthenticatedUser{ID: 2, Role: rbac.RoleOperator, TenantID: tenantID(1)}
	rec = get(newRouter(repo, operator), "/api/tenants/1")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShowMissingTenant(t *testing.T) {
	rec := get(newRouter(seed(), &rbac.AuthenticatedUser{ID: 9, Role: rbac.RoleSuperAdmin}), "/api/tenants/77")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFailureIsInternal(t *testing.T) {
	repo := &stubRepo{err: errors.New("db gone")}
	rec := get(newRouter(repo, &rbac.AuthenticatedUser{ID: 9, Role: rbac.RoleSuperAdmin}), "/api/tenants")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db gone")
}
