package rbac

import (
	"sort"
)

// Matrix answers permission questions for roles. It is immutable once built
// and safe for concurrent use.
type Matrix struct {
	ordered map[Role][]Permission
	index   map[Role]map[Permission]struct{}
}

// NewMatrix builds a Matrix from a role definition. Permissions are
// normalised and deduplicated, keeping first-seen order. Unknown roles are
// dropped.
func NewMatrix(def map[Role][]Permission) *Matrix {
	m := &Matrix{
		ordered: make(map[Role][]Permission, len(def)),
		index:   make(map[Role]map[Permission]struct{}, len(def)),
	}
	for role, perms := range def {
		if !role.Valid() {
			continue
		}
		set := make(map[Permission]struct{}, len(perms))
		list := make([]Permission, 0, len(perms))
		for _, p := range perms {
			p = NormalizePermission(string(p))
			if p == "" {
				continue
			}
			if _, dup := set[p]; dup {
				continue
			}
			set[p] = struct{}{}
			list = append(list, p)
		}
		m.ordered[role] = list
		m.index[role] = set
	}
	return m
}

// DefaultMatrix returns a Matrix over DefaultDefinition.
func DefaultMatrix() *Matrix {
	return NewMatrix(DefaultDefinition())
}

// PermissionsFor returns a copy of the role's permission set. Unknown roles
// yield an empty set.
func (m *Matrix) PermissionsFor(role Role) []Permission {
	if m == nil {
		return []Permission{}
	}
	perms := m.ordered[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// RoleHasPermission reports whether role holds p directly or through
// system:full.
func (m *Matrix) RoleHasPermission(role Role, p Permission) bool {
	if m == nil {
		return false
	}
	set, ok := m.index[role]
	if !ok {
		return false
	}
	if _, ok := set[PermSystemFull]; ok {
		return true
	}
	_, ok = set[NormalizePermission(string(p))]
	return ok
}

// RoleHasAllPermissions is true when every entry is held. Empty input is true.
func (m *Matrix) RoleHasAllPermissions(role Role, perms []Permission) bool {
	for _, p := range perms {
		if !m.RoleHasPermission(role, p) {
			return false
		}
	}
	return true
}

// RoleHasAnyPermission is true when at least one entry is held. Empty input
// is false.
func (m *Matrix) RoleHasAnyPermission(role Role, perms []Permission) bool {
	for _, p := range perms {
		if m.RoleHasPermission(role, p) {
			return true
		}
	}
	return false
}

// AllPermissions lists every permission known to the matrix, sorted.
func (m *Matrix) AllPermissions() []Permission {
	if m == nil {
		return []Permission{}
	}
	seen := make(map[Permission]struct{})
	for _, set := range m.index {
		for p := range set {
			seen[p] = struct{}{}
		}
	}
	out := make([]Permission, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanManageRole reports whether acting may create, modify or delete users
// holding target. Superadmin manages every role, itself included; admin
// manages only operador and visualizador; everyone else manages no one.
// Tenant equality for admins is checked by the caller.
func CanManageRole(acting, target Role) bool {
	if !acting.Valid() || !target.Valid() {
		return false
	}
	switch acting {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return target.rank() < acting.rank()
	default:
		return false
	}
}
