package rbac

import (
	"context"
	"strings"
)

// Role is the identity category a user holds.
type Role string

// Roles ordered from most to least privileged.
const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleOperator   Role = "operador"
	RoleViewer     Role = "visualizador"
)

// Roles lists every defined role, most privileged first.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleOperator, RoleViewer}
}

// ParseRole normalises a role string. Unknown values report false.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role.rank() == 0 {
		return "", false
	}
	return role, true
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r.rank() > 0
}

func (r Role) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 4
	case RoleAdmin:
		return 3
	case RoleOperator:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Permission is a "<resource>:<action>" capability.
type Permission string

// NormalizePermission trims and lower-cases a permission literal.
func NormalizePermission(p string) Permission {
	return Permission(strings.ToLower(strings.TrimSpace(p)))
}

// AuthenticatedUser is the request-scoped identity attached after verification.
type AuthenticatedUser struct {
	ID          int64        `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Role        Role         `json:"role"`
	TenantID    *int64       `json:"tenant_id"`
	Permissions []Permission `json:"permissions"`
}

// IsSuperAdmin reports whether the identity is the platform owner.
func (u *AuthenticatedUser) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}

// BelongsTo reports whether the identity is scoped to tenantID.
func (u *AuthenticatedUser) BelongsTo(tenantID int64) bool {
	return u != nil && u.TenantID != nil && *u.TenantID == tenantID
}

type userContextKey struct{}

// ContextWithUser stores the authenticated user in context.
func ContextWithUser(ctx context.Context, user *AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) *AuthenticatedUser {
	user, _ := ctx.Value(userContextKey{}).(*AuthenticatedUser)
	return user
}
