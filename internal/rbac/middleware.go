package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zapflow/zapflow/internal/audit"
	"github.com/zapflow/zapflow/internal/observability"
	"github.com/zapflow/zapflow/internal/platform/httpx"
)

// Rejection codes emitted by the guards.
const (
	CodeMissingPermission  = "PERMISSION_DENIED"
	CodeSuperAdminRequired = "SUPERADMIN_REQUIRED"
	CodeTenantMismatch     = "TENANT_MISMATCH"
	CodeBodyTooLarge       = "BODY_TOO_LARGE"
)

const maxGuardBody = 1 << 20

// GuardKind identifies the check a Guard performs.
type GuardKind uint8

const (
	GuardPermission GuardKind = iota + 1
	GuardAnyPermission
	GuardAllPermissions
	GuardSuperAdmin
	GuardTenantMembership
	GuardTenantAccess
)

func (k GuardKind) String() string {
	switch k {
	case GuardPermission:
		return "permission"
	case GuardAnyPermission:
		return "any_permission"
	case GuardAllPermissions:
		return "all_permissions"
	case GuardSuperAdmin:
		return "superadmin"
	case GuardTenantMembership:
		return "tenant_membership"
	case GuardTenantAccess:
		return "tenant_access"
	default:
		return "unknown"
	}
}

// TenantSource says where a guard finds the target tenant id. Field names a
// top-level JSON body field; Param names a chi URL parameter. When both are
// present every reference must be the caller's tenant.
type TenantSource struct {
	Param string
	Field string
}

// Guard is a declarative authorization requirement attached to a route.
type Guard struct {
	Kind        GuardKind
	Permissions []Permission
	Tenant      TenantSource
}

// RequirePermission demands a single permission.
func RequirePermission(p Permission) Guard {
	return Guard{Kind: GuardPermission, Permissions: []Permission{p}}
}

// RequireAnyPermission demands at least one of perms.
func RequireAnyPermission(perms ...Permission) Guard {
	return Guard{Kind: GuardAnyPermission, Permissions: perms}
}

// RequireAllPermissions demands every one of perms.
func RequireAllPermissions(perms ...Permission) Guard {
	return Guard{Kind: GuardAllPermissions, Permissions: perms}
}

// RequireSuperAdmin demands the superadmin role.
func RequireSuperAdmin() Guard {
	return Guard{Kind: GuardSuperAdmin}
}

// RequireTenantMembership demands that the tenant in the {tenantID} URL
// parameter is the caller's own.
func RequireTenantMembership() Guard {
	return Guard{Kind: GuardTenantMembership, Tenant: TenantSource{Param: "tenantID"}}
}

// RequireTenantAccess is the write-side variant: the tenant is read from the
// tenant_id body field and the {tenantID} URL parameter, whichever are present.
func RequireTenantAccess() Guard {
	return Guard{Kind: GuardTenantAccess, Tenant: TenantSource{Param: "tenantID", Field: "tenant_id"}}
}

// From overrides where a tenant guard reads the tenant id.
func (g Guard) From(src TenantSource) Guard {
	g.Tenant = src
	return g
}

// Auditor receives security events for rejected requests.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}

// Middleware enforces guard lists against the request identity.
type Middleware struct {
	Matrix  *Matrix
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Audit   Auditor
}

// Route composes authentication with the guards, in that order.
func (m Middleware) Route(authenticate func(http.Handler) http.Handler, guards ...Guard) func(http.Handler) http.Handler {
	enforce := m.Enforce(guards...)
	return func(next http.Handler) http.Handler {
		return authenticate(enforce(next))
	}
}

// Enforce returns middleware evaluating guards in declaration order.
func (m Middleware) Enforce(guards ...Guard) func(http.Handler) http.Handler {
	list := make([]Guard, len(guards))
	copy(list, guards)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if err := m.Evaluate(r, user, list); err != nil {
				m.reject(w, r, user, err)
				return
			}
			m.Metrics.RecordAuthDecision("allowed", "guards")
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.Enforce(RequireAnyPermission(toPermissions(perms)...))
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.Enforce(RequireAllPermissions(toPermissions(perms)...))
}

// Evaluate runs guards against user and returns the first rejection.
func (m Middleware) Evaluate(r *http.Request, user *AuthenticatedUser, guards []Guard) *httpx.Error {
	if user == nil {
		return httpx.Unauthenticated(httpx.CodeUnauthenticated, "authentication required")
	}
	if user.Role == RoleSuperAdmin {
		return nil
	}
	for _, g := range guards {
		if err := m.check(r, user, g); err != nil {
			return err
		}
	}
	return nil
}

func (m Middleware) check(r *http.Request, user *AuthenticatedUser, g Guard) *httpx.Error {
	switch g.Kind {
	case GuardPermission:
		if len(g.Permissions) == 1 && m.Matrix.RoleHasPermission(user.Role, g.Permissions[0]) {
			return nil
		}
		return missing(g.Permissions)
	case GuardAnyPermission:
		if m.Matrix.RoleHasAnyPermission(user.Role, g.Permissions) {
			return nil
		}
		return missing(g.Permissions)
	case GuardAllPermissions:
		if m.Matrix.RoleHasAllPermissions(user.Role, g.Permissions) {
			return nil
		}
		return missing(g.Permissions)
	case GuardSuperAdmin:
		return httpx.Forbidden(CodeSuperAdminRequired, "superadmin role required")
	case GuardTenantMembership, GuardTenantAccess:
		refs, err := tenantRefs(r, g.Tenant)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			return tenantMismatch()
		}
		for _, id := range refs {
			if !user.BelongsTo(id) {
				return tenantMismatch()
			}
		}
		return nil
	default:
		return httpx.Forbidden(httpx.CodeForbidden, "unsupported guard")
	}
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, user *AuthenticatedUser, err *httpx.Error) {
	outcome := "forbidden"
	kind := audit.KindAccessDenied
	if err.Status == http.StatusUnauthorized {
		outcome = "unauthenticated"
		kind = audit.KindAuthRejected
	}
	m.Metrics.RecordAuthDecision(outcome, err.Code)
	if m.Logger != nil {
		attrs := []any{slog.String("code", err.Code), slog.String("path", r.URL.Path)}
		if user != nil {
			attrs = append(attrs, slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))
		}
		m.Logger.Info("rbac rejected request", attrs...)
	}
	if m.Audit != nil {
		event := audit.FromRequest(r, kind, err.Code)
		if user != nil {
			event.ActorID = &user.ID
			event.TenantID = user.TenantID
		}
		m.Audit.Record(r.Context(), event)
	}
	httpx.RespondError(w, err)
}

func missing(perms []Permission) *httpx.Error {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return httpx.Forbidden(CodeMissingPermission, fmt.Sprintf("missing permission: %s", strings.Join(names, ", ")))
}

func toPermissions(raw []string) []Permission {
	perms := make([]Permission, 0, len(raw))
	for _, p := range raw {
		if n := NormalizePermission(p); n != "" {
			perms = append(perms, n)
		}
	}
	return perms
}

func tenantMismatch() *httpx.Error {
	return httpx.Forbidden(CodeTenantMismatch, "resource belongs to another tenant")
}

// tenantRefs collects the tenant ids a request names through src. A reference
// that is present but not a positive integer is a mismatch.
func tenantRefs(r *http.Request, src TenantSource) ([]int64, *httpx.Error) {
	var refs []int64
	if src.Field != "" {
		raw, present, err := tenantFromBody(r, src.Field)
		if err != nil {
			return nil, err
		}
		if present {
			id, ok := parseTenantID(raw)
			if !ok {
				return nil, tenantMismatch()
			}
			refs = append(refs, id)
		}
	}
	if src.Param != "" {
		if raw := chi.URLParam(r, src.Param); raw != "" {
			id, ok := parseTenantID(raw)
			if !ok {
				return nil, tenantMismatch()
			}
			refs = append(refs, id)
		}
	}
	return refs, nil
}

// tenantFromBody peeks at a JSON body field and restores the body for the
// handler. Bodies over maxGuardBody are rejected with 413.
func tenantFromBody(r *http.Request, field string) (string, bool, *httpx.Error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxGuardBody+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return "", false, httpx.Forbidden(CodeTenantMismatch, "request body unreadable")
	}
	if len(raw) > maxGuardBody {
		return "", false, &httpx.Error{Status: http.StatusRequestEntityTooLarge, Code: CodeBodyTooLarge, Message: "request body too large"}
	}
	var fields map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil {
		return "", false, nil
	}
	value, ok := fields[field]
	if !ok {
		return "", false, nil
	}
	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(&num); err == nil {
		return num.String(), true, nil
	}
	var str string
	if err := json.Unmarshal(value, &str); err == nil {
		return str, true, nil
	}
	return "", true, nil
}

func parseTenantID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
