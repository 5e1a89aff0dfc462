package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zapflow/zapflow/internal/audit"
	"github.com/zapflow/zapflow/internal/auth"
	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListByTenant(ctx context.Context, tenantID int64, limit, offset int) (Page, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, in NewUser) (*User, error)
	UpdateRole(ctx context.Context, id int64, role rbac.Role, clearTenant bool) (*User, error)
	Deactivate(ctx context.Context, id int64) (*User, error)
}

// IdentityInvalidator drops cached identities after a change.
type IdentityInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	identity IdentityInvalidator
	audit    rbac.Auditor
	logger   *slog.Logger
	hash     func(string) (string, error)
}

// NewService builds Service instance. identity and audit may be nil.
func NewService(repo RepositoryPort, identity IdentityInvalidator, auditor rbac.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, identity: identity, audit: auditor, logger: logger, hash: auth.HashPassword}
}

// ListByTenant returns a page of the tenant's users.
func (s *Service) ListByTenant(ctx context.Context, tenantID int64, page, perPage int) ([]User, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	result, err := s.repo.ListByTenant(ctx, tenantID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if result.Users == nil {
		result.Users = []User{}
	}
	return result.Users, shared.NewPagination(p.Page, p.PerPage, result.Total), nil
}

// Create adds a user on behalf of actor.
func (s *Service) Create(ctx context.Context, actor *rbac.AuthenticatedUser, in CreateInput, event audit.Event) (*User, error) {
	role, ok := rbac.ParseRole(in.Role)
	if !ok {
		return nil, ErrInvalidRole
	}
	if !rbac.CanManageRole(actor.Role, role) {
		return nil, ErrRoleNotManageable
	}
	tenantID := in.TenantID
	if role == rbac.RoleSuperAdmin {
		tenantID = nil
	} else {
		if tenantID == nil {
			return nil, ErrTenantRequired
		}
		if !actor.IsSuperAdmin() && !actor.BelongsTo(*tenantID) {
			return nil, ErrTenantMismatch
		}
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, NewUser{
		TenantID:     tenantID,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, event, audit.KindUserCreated, actor, user, map[string]any{"role": string(role)})
	return user, nil
}

// ChangeRole moves target to role, revoking its outstanding tokens.
func (s *Service) ChangeRole(ctx context.Context, actor *rbac.AuthenticatedUser, targetID int64, rawRole string, event audit.Event) (*User, error) {
	role, ok := rbac.ParseRole(rawRole)
	if !ok {
		return nil, ErrInvalidRole
	}
	target, err := s.authorize(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanManageRole(actor.Role, role) {
		return nil, ErrRoleNotManageable
	}
	if role != rbac.RoleSuperAdmin && target.TenantID == nil {
		return nil, ErrTenantRequired
	}
	updated, err := s.repo.UpdateRole(ctx, target.ID, role, role == rbac.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, updated.ID)
	s.record(ctx, event, audit.KindUserRoleChanged, actor, target, map[string]any{
		"from": string(target.Role),
		"to":   string(role),
	})
	return updated, nil
}

// Deactivate disables target, revoking its outstanding tokens.
func (s *Service) Deactivate(ctx context.Context, actor *rbac.AuthenticatedUser, targetID int64, event audit.Event) (*User, error) {
	target, err := s.authorize(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.Deactivate(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, updated.ID)
	s.record(ctx, event, audit.KindUserDeactivated, actor, target, nil)
	return updated, nil
}

// authorize loads the target and checks actor may manage it as it stands.
func (s *Service) authorize(ctx context.Context, actor *rbac.AuthenticatedUser, targetID int64) (*User, error) {
	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actor.IsSuperAdmin() {
		if target.ID == actor.ID {
			s.logger.Warn("superadmin modifying own account", slog.Int64("user_id", actor.ID))
		}
		return target, nil
	}
	if target.ID == actor.ID {
		return nil, ErrSelfAction
	}
	if target.TenantID == nil || !actor.BelongsTo(*target.TenantID) {
		return nil, ErrTenantMismatch
	}
	if !rbac.CanManageRole(actor.Role, target.Role) {
		return nil, ErrRoleNotManageable
	}
	return target, nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.identity == nil {
		return
	}
	if err := s.identity.Invalidate(ctx, userID); err != nil {
		s.logger.Error("identity cache invalidate failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, event audit.Event, kind audit.Kind, actor *rbac.AuthenticatedUser, target *User, meta map[string]any) {
	if s.audit == nil {
		return
	}
	event.Kind = kind
	event.ActorID = &actor.ID
	event.TargetID = &target.ID
	event.TenantID = target.TenantID
	event.Meta = meta
	s.audit.Record(ctx, event)
}
