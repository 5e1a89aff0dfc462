package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zapflow/zapflow/internal/platform/httpx"
)

// PermissionsHandler exposes the permission catalogue.
type PermissionsHandler struct {
	logger       *slog.Logger
	matrix       *Matrix
	rbac         Middleware
	authenticate func(http.Handler) http.Handler
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, matrix *Matrix, rbac Middleware, authenticate func(http.Handler) http.Handler) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, matrix: matrix, rbac: rbac, authenticate: authenticate}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Route(h.authenticate, RequirePermission(PermUsersView)))
		r.Get("/", h.listPermissions)
	})
}

type rolePermissions struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

type catalogue struct {
	Permissions []Permission      `json:"permissions"`
	Roles       []rolePermissions `json:"roles"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	out := catalogue{Permissions: h.matrix.AllPermissions()}
	for _, role := range Roles() {
		out.Roles = append(out.Roles, rolePermissions{Role: role, Permissions: h.matrix.PermissionsFor(role)})
	}
	httpx.OK(w, http.StatusOK, out)
}
