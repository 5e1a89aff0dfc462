package auth

import (
	"context"
	"time"

	"github.com/zapflow/zapflow/internal/rbac"
)

// User represents a stored user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         rbac.Role
	TenantID     *int64
	IsActive     bool
	TokenVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the token identity for u.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Role: u.Role, TenantID: u.TenantID, TokenVersion: u.TokenVersion}
}

// Identity builds the request identity using the stored role and tenant.
func (u *User) Identity(matrix *rbac.Matrix) *rbac.AuthenticatedUser {
	return &rbac.AuthenticatedUser{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		TenantID:    u.TenantID,
		Permissions: matrix.PermissionsFor(u.Role),
	}
}

// UserFromContext returns the identity attached by the Authenticator, or nil.
func UserFromContext(ctx context.Context) *rbac.AuthenticatedUser {
	return rbac.UserFromContext(ctx)
}
