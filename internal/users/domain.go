package users

import (
	"errors"
	"time"

	"github.com/zapflow/zapflow/internal/rbac"
)

// User represents a user account for management. The password hash never
// leaves the repository.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         rbac.Role `json:"role"`
	TenantID     *int64    `json:"tenant_id"`
	IsActive     bool      `json:"is_active"`
	TokenVersion int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateInput is the payload for creating a user.
type CreateInput struct {
	TenantID *int64 `json:"tenant_id"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
}

// NewUser is what the repository persists on create.
type NewUser struct {
	TenantID     *int64
	Email        string
	Name         string
	PasswordHash string
	Role         rbac.Role
}

// Page is one page of a tenant's users.
type Page struct {
	Users []User
	Total int
}

var (
	// ErrEmailTaken means another account already uses the email.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrRoleNotManageable means the actor's role may not manage the target role.
	ErrRoleNotManageable = errors.New("users: role outside actor's authority")
	// ErrTenantMismatch means the target belongs to another tenant.
	ErrTenantMismatch = errors.New("users: target belongs to another tenant")
	// ErrSelfAction rejects changing one's own role or status.
	ErrSelfAction = errors.New("users: cannot modify own account")
	// ErrInvalidRole means the requested role does not exist.
	ErrInvalidRole = errors.New("users: unknown role")
	// ErrTenantRequired means a tenant-scoped role was given no tenant.
	ErrTenantRequired = errors.New("users: tenant required for this role")
)
