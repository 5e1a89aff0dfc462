package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemFullSatisfiesAnything(t *testing.T) {
	m := DefaultMatrix()
	for _, p := range []Permission{PermBillingManage, "made:up", "tenants:delete", ""} {
		assert.True(t, m.RoleHasPermission(RoleSuperAdmin, p), string(p))
	}
	custom := NewMatrix(map[Role][]Permission{RoleViewer: {PermSystemFull}})
	assert.True(t, custom.RoleHasPermission(RoleViewer, PermUsersManage))
}

func TestEmptyPermissionLists(t *testing.T) {
	m := DefaultMatrix()
	for _, role := range append(Roles(), Role("ghost")) {
		assert.True(t, m.RoleHasAllPermissions(role, nil), string(role))
		assert.True(t, m.RoleHasAllPermissions(role, []Permission{}), string(role))
		assert.False(t, m.RoleHasAnyPermission(role, nil), string(role))
		assert.False(t, m.RoleHasAnyPermission(role, []Permission{}), string(role))
	}
}

func TestHierarchyIsMonotonic(t *testing.T) {
	m := DefaultMatrix()
	chain := []Role{RoleViewer, RoleOperator, RoleAdmin, RoleSuperAdmin}
	for i := 0; i+1 < len(chain); i++ {
		lower, higher := chain[i], chain[i+1]
		for _, p := range m.PermissionsFor(lower) {
			assert.True(t, m.RoleHasPermission(higher, p), "%s should inherit %s from %s", higher, p, lower)
		}
	}
}

func TestSampleMatrix(t *testing.T) {
	m := DefaultMatrix()
	assert.True(t, m.RoleHasPermission(RoleOperator, PermChatManage))
	assert.False(t, m.RoleHasPermission(RoleOperator, PermBillingView))
	assert.True(t, m.RoleHasPermission(RoleAdmin, PermBillingView))
	assert.False(t, m.RoleHasPermission(RoleAdmin, PermTenantsView))
	assert.False(t, m.RoleHasPermission(RoleViewer, PermChatManage))
	assert.True(t, m.RoleHasPermission(RoleViewer, " Chat:View "))

	assert.True(t, m.RoleHasAllPermissions(RoleOperator, []Permission{PermChatView, PermChatManage}))
	assert.False(t, m.RoleHasAllPermissions(RoleOperator, []Permission{PermChatView, PermBillingView}))
	assert.True(t, m.RoleHasAnyPermission(RoleOperator, []Permission{PermBillingView, PermTicketsView}))
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	m := DefaultMatrix()
	ghost := Role("owner")
	assert.Empty(t, m.PermissionsFor(ghost))
	assert.False(t, m.RoleHasPermission(ghost, PermDashboardView))
	assert.False(t, m.RoleHasPermission("", PermDashboardView))

	var nilMatrix *Matrix
	assert.False(t, nilMatrix.RoleHasPermission(RoleSuperAdmin, PermDashboardView))
	assert.Empty(t, nilMatrix.PermissionsFor(RoleAdmin))
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	m := DefaultMatrix()
	perms := m.PermissionsFor(RoleViewer)
	require.NotEmpty(t, perms)
	perms[0] = PermSystemFull
	assert.False(t, m.RoleHasPermission(RoleViewer, PermBillingManage))
}

func TestNewMatrixNormalisesAndDropsUnknownRoles(t *testing.T) {
	m := NewMatrix(map[Role][]Permission{
		RoleViewer:    {" Chat:View", "chat:view", "", "contacts:view"},
		Role("guest"): {PermDashboardView},
	})
	assert.Equal(t, []Permission{PermChatView, PermContactsView}, m.PermissionsFor(RoleViewer))
	assert.Empty(t, m.PermissionsFor("guest"))
	assert.Equal(t, []Permission{PermChatView, PermContactsView}, m.AllPermissions())
}

func TestCanManageRole(t *testing.T) {
	cases := []struct {
		acting, target Role
		want           bool
	}{
		{RoleSuperAdmin, RoleSuperAdmin, true},
		{RoleSuperAdmin, RoleAdmin, true},
		{RoleSuperAdmin, RoleOperator, true},
		{RoleSuperAdmin, RoleViewer, true},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleAdmin, RoleAdmin, false},
		{RoleAdmin, RoleOperator, true},
		{RoleAdmin, RoleViewer, true},
		{RoleOperator, RoleViewer, false},
		{RoleOperator, RoleOperator, false},
		{RoleViewer, RoleViewer, false},
		{RoleSuperAdmin, Role("ghost"), false},
		{Role("ghost"), RoleViewer, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanManageRole(tc.acting, tc.target), "%s -> %s", tc.acting, tc.target)
	}
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" ADMIN ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)
	_, ok = ParseRole("root")
	assert.False(t, ok)
}
